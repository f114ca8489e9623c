package tree

// Kind tags an Element with its element type, drawn from NML's open,
// registry-driven set. The set of kinds itself is fixed in Go (new kinds
// require a code change); what's open at runtime is the set of *rules*
// that can produce StyledRun elements with a new delimiter, via scripted
// custom styles (see the script package).
type Kind int

const (
	KindDocument Kind = iota
	KindParagraph
	KindSection
	KindStyledRun
	KindList
	KindListItem
	KindTable
	KindTableRow
	KindTableCell
	KindCodeBlock
	KindInlineCode
	KindMath
	KindGraph
	KindMedia
	KindReference
	KindRaw
	KindLayout
	KindLayoutPane
	KindBlockquote
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindParagraph:
		return "paragraph"
	case KindSection:
		return "section"
	case KindStyledRun:
		return "styled_run"
	case KindList:
		return "list"
	case KindListItem:
		return "list_item"
	case KindTable:
		return "table"
	case KindTableRow:
		return "table_row"
	case KindTableCell:
		return "table_cell"
	case KindCodeBlock:
		return "code_block"
	case KindInlineCode:
		return "inline_code"
	case KindMath:
		return "math"
	case KindGraph:
		return "graph"
	case KindMedia:
		return "media"
	case KindReference:
		return "reference"
	case KindRaw:
		return "raw"
	case KindLayout:
		return "layout"
	case KindLayoutPane:
		return "layout_pane"
	case KindBlockquote:
		return "blockquote"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Containment describes how an Element holds content.
type Containment int

const (
	// ContainLeaf elements have no children (e.g. a text run, a reference).
	ContainLeaf Containment = iota
	// ContainInline elements hold an ordered run of inline children (styled runs, paragraphs).
	ContainInline
	// ContainBlock elements are explicit open/close containers (layouts, lists, blockquotes).
	ContainBlock
)
