// Package command defines the wsmesh-server command line.
//
//	wsmesh-server [--config file] serve
//	wsmesh-server user add --group staff alice
//	wsmesh-server group list -o json
//
// Flags of a subcommand go before its positional id.
//
// User and group commands open the data directory directly, so they must
// run while the server is stopped.
package command
