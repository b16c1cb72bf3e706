/*
detfm reads an obfuscated Transformice client movie, recovers its class,
method, field, and packet-handler identities, and writes the rewritten
movie back out, optionally unpacking a self-extracting wrapper first and
rewriting its server connect-address to a local proxy.
*/
package main

import (
	"github.com/whit3rabbit/detfm/cmd/detfm/cmd"
)

func main() {
	cmd.Execute()
}
