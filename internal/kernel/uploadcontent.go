package kernel

// UploadContent is a tagged union over the ways a downloaded object's bytes
// can be presented to a caller. Exactly one of the pointer fields is set.
type UploadContent struct {
	Text   *TextContent
	JSON   *JSONContent
	Binary *BinaryContent
	Zip    *ZipContent
}

type TextContent struct {
	Body     string
	Encoding string // "utf-8", "latin-1", "cp1252", etc.
}

type JSONContent struct {
	Body string // raw JSON text
}

type BinaryContent struct {
	HexPreview string
}

type ZipContent struct {
	Entries []ZipFileEntry
	Summary string
}

type ZipFileEntry struct {
	Name           string
	Size           int64
	CompressedSize int64
	Preview        *string
}
