// Package indexer keeps a keyword index over a worker's workspace files.
package indexer

import (
	"crypto/sha256"
	"fmt"
	"path"
	"strings"
)

// Language is derived from a file's extension.
type Language string

const (
	LangLiquid     Language = "liquid"
	LangCSS        Language = "css"
	LangJavaScript Language = "js"
	LangJSON       Language = "json"
	LangMarkdown   Language = "markdown"
	LangText       Language = "text"
)

// DetectLanguage maps a file name to a Language.
func DetectLanguage(name string) Language {
	switch strings.ToLower(path.Ext(name)) {
	case ".liquid":
		return LangLiquid
	case ".css", ".scss":
		return LangCSS
	case ".js", ".mjs", ".ts":
		return LangJavaScript
	case ".json":
		return LangJSON
	case ".md":
		return LangMarkdown
	}
	return LangText
}

// Chunk is an indexed span of a file.
type Chunk struct {
	ChunkID   string
	FilePath  string
	Lang      Language
	StartLine int
	EndLine   int
	Text      string
}

// MaxChunkLines caps paragraph chunks so a single match points at a
// readable span.
const MaxChunkLines = 40

// ChunkParagraphs splits content at blank lines and at MaxChunkLines.
func ChunkParagraphs(filePath, content string) []Chunk {
	lines := strings.Split(content, "\n")
	lang := DetectLanguage(filePath)

	var chunks []Chunk
	var para []string
	startLine := 1

	flush := func(endLine int) {
		if len(para) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			ChunkID:   hashChunk(filePath, startLine, endLine),
			FilePath:  filePath,
			Lang:      lang,
			StartLine: startLine,
			EndLine:   endLine,
			Text:      strings.Join(para, "\n"),
		})
		para = para[:0]
	}

	for i, line := range lines {
		lineNum := i + 1
		if strings.TrimSpace(line) == "" {
			flush(lineNum - 1)
			startLine = lineNum + 1
			continue
		}
		if len(para) == 0 {
			startLine = lineNum
		}
		para = append(para, line)
		if len(para) == MaxChunkLines {
			flush(lineNum)
		}
	}
	flush(len(lines))
	return chunks
}

func hashChunk(filePath string, startLine, endLine int) string {
	key := fmt.Sprintf("%s:%d:%d", filePath, startLine, endLine)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))
}
