package mcpserver

// EmbedFormatContract describes how documents from paperless-ngx are
// linked into notes, so that LLM consumers produce matching text.
const EmbedFormatContract = `# paperlink Embed Format

paperlink links paperless-ngx documents into Markdown notes through
placeholder files.

## Document token

A note line may reference a document by id:

` + "```" + `markdown
Invoice for March: paperless-ngx 1234
` + "```" + `

The token is the literal ` + "`" + `paperless-ngx` + "`" + `, whitespace, then the decimal
document id. Only the first token on a line is rendered.

## Rendering

Rendering a line (the ` + "`" + `render_document` + "`" + ` tool) looks up the document's
` + "`" + `media_filename` + "`" + ` on the server and:

1. writes ` + "`" + `{dummyFolder}/{media_filename}` + "`" + ` containing the preview URL
   ` + "`" + `{apiUrl}/documents/{id}/preview/` + "`" + ` (overwriting any earlier copy),
2. replaces the token with an embed reference:

` + "```" + `markdown
Invoice for March: ![[invoice-2024-03.pdf]]
` + "```" + `

## Inserting

` + "`" + `insert_document` + "`" + ` writes the same placeholder and inserts
` + "`" + `![[media_filename]]` + "`" + ` at a position without removing text.

## Rules

1. Positions are 0-based lines and 0-based character columns.
2. Ids are decimal digits only.
3. The placeholder folder must already exist in the vault.
4. Two documents with the same ` + "`" + `media_filename` + "`" + ` share one placeholder;
   the last one written wins.
`
