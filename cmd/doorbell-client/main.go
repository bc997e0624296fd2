// Command doorbell-client reports a ring to doorbell-server and fires the
// latch once the operator lets the visitor in.
package main

import "github.com/oshokin/doorbell/cmd/doorbell-client/cmd"

func main() {
	cmd.Execute()
}
