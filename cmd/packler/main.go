// Packler builds content-hashed static assets and their manifest.
package main

import "github.com/albertocavalcante/packler/cmd/packler/internal/cli"

func main() {
	cli.Execute()
}
