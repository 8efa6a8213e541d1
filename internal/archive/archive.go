// Package archive declares the contract a registry snapshot tarball
// pack/unpack implementation would satisfy. Unused by any shipped code
// path — registry versions are plain directory trees on disk (spec.md §6)
// — and kept only as the shape the out-of-scope remote path (internal/remote)
// would need to serialize a version for transport.
package archive

import "io"

// Packer serializes a directory tree to w and reconstructs one from r.
type Packer interface {
	Pack(dir string, w io.Writer) error
	Unpack(r io.Reader, dir string) error
}
