//go:build !linux

package arena

func reserve(size int, alignment uint) (*Arena, error) {
	return reserveSlice(size, alignment)
}
