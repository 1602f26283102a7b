//go:build !unix

package source

// OpenMapped falls back to positioned reads where mappings are not
// supported.
func OpenMapped(name string) (Source, error) {
	return OpenFile(name)
}
