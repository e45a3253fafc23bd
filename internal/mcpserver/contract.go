package mcpserver

// OutlineContract describes the stored outline format and the command set
// that LLM consumers use to edit documents.
const OutlineContract = `# Outliner Document Contract

Documents are trees of nodes. Every document is stored as
` + "`" + `<name>.outline.json` + "`" + ` in the library and addressed by its name
(slash-separated, no extension).

## Stored shape

` + "```" + `json
{
  "title": "Errands",
  "version": 1,
  "currentPath": [],
  "pinnedItems": [],
  "root": {
    "id": "root",
    "text": "",
    "children": [
      {"id": "a1", "text": "buy milk #shop", "note": "", "collapsed": false, "children": []},
      {"id": "b2", "text": "pay rent", "checked": false, "children": []}
    ]
  }
}
` + "```" + `

## Rules

1. The root node is never shown. Its children are the top-level items.
2. **ids** are unique and stable. Use the ids returned by ` + "`" + `read_outline` + "`" + ` (format ` + "`" + `json` + "`" + `) in commands.
3. **checked** present means the node is a checklist item; absent means plain.
4. **Tags** are written inline as ` + "`" + `#tag` + "`" + `; links to other documents as ` + "`" + `[[name]]` + "`" + `.
5. Calendar nodes (` + "`" + `calendarType` + "`" + ` year, month or day) have generated text and cannot be renamed.
6. Imports may be JSON, YAML or OPML 2.0. Missing fields are filled in and missing ids generated.

## Commands (outline_command)

| op | fields |
|---|---|
| split | id, offset |
| merge | id |
| indent, outdent | id |
| indent_selection, outdent_selection, delete_selection | ids (or the current selection) |
| move | id, target, position (before, after, child) |
| reorder | id, direction (up, down) |
| delete | id |
| set_text, set_note | id, text |
| set_title | text |
| toggle_checked, make_checklist, clear_checklist | id |
| collapse, expand, toggle_collapsed, collapse_parent | id |
| zoom_in | id |
| zoom_out, zoom_home | none |
| pin, unpin, open_pin | id |
| move_pin | from, to |
| open_day | date (YYYY-MM-DD, default today) |
| select | id |
| extend_selection | id, direction |
| clear_selection | none |

A command that would break the tree (indenting the first child, moving a
node into its own subtree, deleting the last top-level node) does nothing
and reports ` + "`" + `changed: false` + "`" + `. Every change can be undone with ` + "`" + `undo` + "`" + `.
`
