//go:generate go run -tags generate ./cmd/generate-keymap ./keymap_gen.go
package keymap

import "embed"

//go:embed data/*.md
var FS embed.FS
