package monday

// Operation names, also used as metric labels.
const (
	OpGetItem        = "GetItem"
	OpGetItemColumns = "GetItemColumns"
	OpSearchItems    = "SearchItems"
	OpUpdateItem     = "UpdateItem"
	OpCreateItem     = "CreateItem"
)

const getItemQuery = `query GetItem($ids: [ID!]) {
  items(ids: $ids) {
    id
    name
    board { id }
    column_values { id text value }
  }
}`

const getItemColumnsQuery = `query GetItemColumns($ids: [ID!], $columns: [String!]) {
  items(ids: $ids) {
    id
    name
    column_values(ids: $columns) { id text value }
  }
}`

const searchItemsQuery = `query SearchItems($board: [ID!], $column: ID!, $value: CompareValue!) {
  boards(ids: $board) {
    items_page(limit: 25, query_params: { rules: [{ column_id: $column, compare_value: $value, operator: any_of }] }) {
      items { id name }
    }
  }
}`

const updateItemMutation = `mutation UpdateItem($item: ID!, $board: ID!, $values: JSON!) {
  change_multiple_column_values(item_id: $item, board_id: $board, column_values: $values) {
    id
    name
  }
}`

const createItemMutation = `mutation CreateItem($board: ID!, $name: String!, $values: JSON) {
  create_item(board_id: $board, item_name: $name, column_values: $values) {
    id
    name
  }
}`
