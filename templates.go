// Package boxes 内置的 VM 镜像模板族。
package boxes

import (
	"embed"
	"io/fs"
)

//go:embed all:win-10-pro-x64
var templates embed.FS

// Templates 返回内置模板根，路径形如 win-10-pro-x64/packer.json.tmpl。
func Templates() fs.FS {
	return templates
}
