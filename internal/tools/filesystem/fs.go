package filesystem

// Files is the read-only view of a worker's workspace the filesystem tools
// operate on.
type Files interface {
	Read(ref string) (string, error)
	Names() []string
}
