// Command forrstd boots a demo Forrst RPC server: the reserved system
// functions, the orders.create/orders.export example domain functions, and
// the canonical HTTP transport, wired together the way a real deployment
// would wire its own domain functions in.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
