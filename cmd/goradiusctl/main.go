// Goradiusctl is the CLI client for the goradiusd RADIUS daemon.
package main

import "github.com/dlp-radius/goradius/cmd/goradiusctl/commands"

func main() {
	commands.Execute()
}
