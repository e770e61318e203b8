package mcpserver

// ItemFormatURI is the resource URI of ItemFormatContract.
const ItemFormatURI = "itemdesk://item-format"

// ItemFormatContract tells LLM clients what a valid item looks like.
const ItemFormatContract = `# itemdesk Item Format

An item is a small tracked record.

| field         | type            | rules                                              |
|---------------|-----------------|----------------------------------------------------|
| ` + "`id`" + `          | integer         | assigned on create (creation time in ms), immutable |
| ` + "`name`" + `        | string          | required, at least 3 characters after trimming      |
| ` + "`description`" + ` | string          | required, non-empty                                 |
| ` + "`priority`" + `    | string          | one of ` + "`high`, `medium`, `low`" + `                        |
| ` + "`createdAt`" + `   | RFC 3339 string | set on create                                       |
| ` + "`updatedAt`" + `   | RFC 3339 string | set on create and on every update                   |

## Tools

- ` + "`add_item`" + ` creates an item from name, description and priority.
- ` + "`update_item`" + ` replaces name, description and priority of an existing id.
  Unknown ids are reported, nothing is created.
- ` + "`remove_item`" + ` deletes by id. Removing an unknown id is not an error.
- ` + "`get_item`" + ` returns one item.
- ` + "`list_items`" + ` filters by name (case-insensitive substring) and priority,
  sorts by updatedAt (` + "`newest`" + ` or ` + "`oldest`" + `) and pages 10 at a time by default.

## Validation messages

Failures are reported together, in this order:

1. name must be at least 3 characters and cannot be empty
2. description cannot be empty
3. priority must be one of high, medium, low

## Example

` + "```" + `json
{
  "id": 1714564800000,
  "name": "Renew passport",
  "description": "Book an appointment before June",
  "priority": "high",
  "createdAt": "2024-05-01T12:00:00Z",
  "updatedAt": "2024-05-01T12:00:00Z"
}
` + "```" + `
`
