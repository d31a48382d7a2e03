package archive

import "os"

// readFile is a small shared helper so each remote backend doesn't repeat
// the same os.ReadFile-and-wrap boilerplate.
func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
