// Package tmpl 提供带可切换定界符的严格模板引擎。
//
// 语法与 Jinja 的常用子集对齐，定界符由 [Profile] 决定，因此同一目录下
// 的 JSON 与 XML 模板可以分别使用互不冲突的标记。
//
// # 内置 Profile
//
//   - [Default]:   块 {% ... %}，变量 {{ ... }}
//   - [Alternate]: 块 @= ... =@，变量 @@ ... @@
//
// 任一 Profile 下，其他 Profile 的定界符都只是普通文本。
//
// # 核心设计原则
//
//  1. 严格未定义：引用不存在的变量返回 [UndefinedVariableError]，不会输出空串
//  2. 解析一次：[Parse] 产出的 [Template] 可重复执行，结果确定
//  3. 无部分输出：渲染失败时不向 io.Writer 写入任何内容
//
// # 支持的语法
//
//   - 变量与属性：{{ name }}、{{ loop.index }}、{{ items[0] }}
//   - 条件：{% if a and not b %} ... {% elif c %} ... {% else %} ... {% endif %}
//   - 循环：{% for b in builders %} ... {% else %} ... {% endfor %}，
//     循环体内可用 loop.index / loop.index0 / loop.first / loop.last / loop.length
//   - 包含：{% include "answer_files/Autounattend.xml" %}，内容来自 [WithIncluder]
//   - 空白控制：{%- 去除左侧空白，-%} 去除右侧空白
//
// # 支持的过滤器
//
//   - fromjson: 解析 JSON 文本 {{ '["a"]' | fromjson }}
//   - jsonify: 2 空格缩进的 JSON {{ value | jsonify }}
//   - tojson / toyaml: 紧凑 JSON / YAML
//   - default: 空值回退 {{ value | default("fallback") }}
//   - lower / upper / trim / xmlescape / join / length
//
// 详见 [Parse] 与 [Render] 文档。
package tmpl
