// Command doorbell-server texts the operators when the doorbell rings and
// tells the embedded client when to open the door.
package main

import "github.com/oshokin/doorbell/cmd/doorbell-server/cmd"

func main() {
	cmd.Execute()
}
