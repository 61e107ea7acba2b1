// Command cvextract runs CV extraction outside the server and mints bearer
// tokens for the protected routes.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
