package engine

// ToolSet specifies which categories of tools to include in a registry.
type ToolSet struct {
	Filesystem bool // read_file, list_files
	Search     bool // grep, search_code
	Editing    bool // search_replace, write_file
	Reasoning  bool // think, respond
	Delegation bool // delegate
}
