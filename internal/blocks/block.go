package blocks

// BlockType enumerates the target service's block grammar. The set is
// closed: the publisher serializes each variant explicitly.
type BlockType string

const (
	Heading1         BlockType = "heading_1"
	Heading2         BlockType = "heading_2"
	Heading3         BlockType = "heading_3"
	Paragraph        BlockType = "paragraph"
	Code             BlockType = "code"
	BulletedListItem BlockType = "bulleted_list_item"
	NumberedListItem BlockType = "numbered_list_item"
	Table            BlockType = "table"
	TableRow         BlockType = "table_row"
)

// TextSpan is one run of inline text with its annotations.
type TextSpan struct {
	Text   string
	Bold   bool
	Italic bool
	Code   bool
	Link   string
}

// Block is one typed content unit. Order within a sequence is significant
// and preserved end to end; Children nest where the grammar allows it
// (list items under list items, rows under tables).
type Block struct {
	Type BlockType
	// Rich holds the text runs for headings, paragraphs and list items.
	Rich []TextSpan
	// Language and Text are set for code blocks.
	Language string
	Text     string
	// Cells is set for table rows.
	Cells [][]TextSpan
	// HasHeader marks a table whose first row is a header.
	HasHeader bool
	Children  []Block
}

// PlainText flattens the block's rich text, mostly for tests and logs.
func (b Block) PlainText() string {
	var out string
	for _, span := range b.Rich {
		out += span.Text
	}
	return out
}

// ChunkBlocks splits a sequence into ordered sub-sequences of at most size
// blocks, the affordance the publisher uses for per-request limits.
func ChunkBlocks(seq []Block, size int) [][]Block {
	if size <= 0 {
		size = 100
	}
	var chunks [][]Block
	for start := 0; start < len(seq); start += size {
		end := start + size
		if end > len(seq) {
			end = len(seq)
		}
		chunks = append(chunks, seq[start:end])
	}
	return chunks
}
