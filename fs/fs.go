// Package appfs embeds the static assets shipped with the binaries:
// SQL migrations and email templates.
package appfs

import "embed"

//go:embed migrations/*.sql templates common-passwords.txt
var FS embed.FS
