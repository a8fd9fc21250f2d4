package port

type FileWalker interface {
	Walk(root string) ([]string, error)
}
