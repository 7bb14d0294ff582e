package mcpserver

// DocumentFormatContract describes the parsed document shape and the
// evaluation text layout for LLM consumers.
const DocumentFormatContract = `# labdesk Document Format

labdesk accepts two kinds of submissions: Python scripts (` + "`" + `.py` + "`" + `) and Jupyter
notebooks (` + "`" + `.ipynb` + "`" + `). The extension decides the kind, case-insensitively.

## Parsed document

` + "```" + `json
{
  "file_name": "hw.ipynb",
  "file_kind": "notebook",
  "file_size_bytes": 2048,
  "raw_text": "...",
  "notebook_summary": {"total_cells": 3, "code_cell_count": 2, "markdown_cell_count": 1},
  "cells": [
    {
      "index": 1,
      "kind": "code",
      "source": "print(1)",
      "execution_count": 1,
      "outputs": [
        {"output_kind": "stream", "items": [{"kind": "stream", "text": "1\n"}]}
      ]
    }
  ]
}
` + "```" + `

- Scripts have no ` + "`" + `cells` + "`" + ` and no ` + "`" + `notebook_summary` + "`" + `; ` + "`" + `raw_text` + "`" + ` is the file verbatim.
- Cell ` + "`" + `index` + "`" + ` starts at 1 and counts every cell, markdown included.
- Cell kinds: ` + "`" + `code` + "`" + `, ` + "`" + `markdown` + "`" + `, ` + "`" + `raw` + "`" + `; any other literal is kept as is.
- Item kinds: ` + "`" + `stream` + "`" + `, ` + "`" + `text` + "`" + `, ` + "`" + `image` + "`" + ` (base64 ` + "`" + `image_data` + "`" + ` and ` + "`" + `image_mime` + "`" + `),
  ` + "`" + `html` + "`" + `, ` + "`" + `error` + "`" + ` (` + "`" + `error_name` + "`" + `, ` + "`" + `error_value` + "`" + `, ` + "`" + `error_traceback` + "`" + ` without ANSI colors).

## Evaluation text

Only code cells, numbered among code cells (not by cell index):

` + "```" + `
# ── Cell 1 ──────────────────────────
x = 1
print(x)

# Output:
1
` + "```" + `

- Blocks are separated by a blank line.
- Outputs list stream text, plain text results and errors as ` + "`" + `Name: value` + "`" + `.
- Images, HTML and tracebacks are never included.
- Submissions are cut to 15000 characters before grading.
`
