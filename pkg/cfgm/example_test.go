package cfgm_test

import (
	"fmt"
	"time"

	"github.com/lwmacct/251016-go-vagrant-boxes/pkg/cfgm"
)

func ExampleDefaultPaths() {
	fmt.Println(cfgm.DefaultPaths())
	// Output:
	// [config.yaml config/config.yaml]
}

func ExampleExampleYAML() {
	type PackerConfig struct {
		Binary string `koanf:"binary" desc:"packer 可执行文件"`
	}
	type Config struct {
		Family  string        `koanf:"family"  desc:"模板族"`
		Clean   bool          `koanf:"clean"   desc:"构建后删除暂存目录"`
		Timeout time.Duration `koanf:"timeout" desc:"超时时间"`
		Packer  PackerConfig  `koanf:"packer"  desc:"packer 配置"`
	}

	yaml := cfgm.ExampleYAML(Config{
		Family:  "win-10-pro-x64",
		Clean:   true,
		Timeout: 30 * time.Second,
		Packer:  PackerConfig{Binary: "packer"},
	})
	fmt.Print(string(yaml))

	// Output:
	// # 配置示例文件, 复制为 config.yaml 或 ~/.config/<app>/config.yaml 后按需修改
	// family: "win-10-pro-x64" # 模板族
	// clean: true # 构建后删除暂存目录
	// timeout: 30s # 超时时间
	//
	// # packer 配置
	// packer:
	//   binary: "packer" # packer 可执行文件
}

func ExampleLoad() {
	type Config struct {
		Family    string `koanf:"family"`
		OSVariant string `koanf:"os_variant"`
	}

	cfg, err := cfgm.Load(
		Config{Family: "win-10-pro-x64", OSVariant: "pro"},
		cfgm.WithRawBytes([]byte("os_variant: home\n"), "yaml"),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(cfg.Family, cfg.OSVariant)

	// Output:
	// win-10-pro-x64 home
}
