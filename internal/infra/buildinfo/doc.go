// Package buildinfo reports the version of the wsmesh-server binary.
//
// Version, Commit and BuildTime are injected with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/wsmesh-go/internal/infra/buildinfo.Version=v1.0.0"
//
// When they are left unset, VCS data recorded by the Go toolchain is used.
package buildinfo
