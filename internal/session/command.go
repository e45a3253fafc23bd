package session

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/models"
)

// Command operations.
const (
	OpSplit            = "split"
	OpMerge            = "merge"
	OpIndent           = "indent"
	OpOutdent          = "outdent"
	OpIndentSelection  = "indent_selection"
	OpOutdentSelection = "outdent_selection"
	OpMove             = "move"
	OpReorder          = "reorder"
	OpDelete           = "delete"
	OpDeleteSelection  = "delete_selection"
	OpSetText          = "set_text"
	OpSetNote          = "set_note"
	OpSetTitle         = "set_title"
	OpToggleChecked    = "toggle_checked"
	OpMakeChecklist    = "make_checklist"
	OpClearChecklist   = "clear_checklist"
	OpCollapse         = "collapse"
	OpExpand           = "expand"
	OpToggleCollapsed  = "toggle_collapsed"
	OpCollapseParent   = "collapse_parent"
	OpZoomIn           = "zoom_in"
	OpZoomOut          = "zoom_out"
	OpZoomHome         = "zoom_home"
	OpPin              = "pin"
	OpUnpin            = "unpin"
	OpMovePin          = "move_pin"
	OpOpenPin          = "open_pin"
	OpOpenDay          = "open_day"
	OpSelect           = "select"
	OpExtendSelection  = "extend_selection"
	OpClearSelection   = "clear_selection"
)

var allOps = []any{
	OpSplit, OpMerge, OpIndent, OpOutdent, OpIndentSelection, OpOutdentSelection,
	OpMove, OpReorder, OpDelete, OpDeleteSelection, OpSetText, OpSetNote, OpSetTitle,
	OpToggleChecked, OpMakeChecklist, OpClearChecklist, OpCollapse, OpExpand,
	OpToggleCollapsed, OpCollapseParent, OpZoomIn, OpZoomOut, OpZoomHome, OpPin,
	OpUnpin, OpMovePin, OpOpenPin, OpOpenDay, OpSelect, OpExtendSelection, OpClearSelection,
}

// Ops that address a single node through ID.
var nodeOps = map[string]bool{
	OpSplit: true, OpMerge: true, OpIndent: true, OpOutdent: true, OpMove: true,
	OpReorder: true, OpDelete: true, OpSetText: true, OpSetNote: true,
	OpToggleChecked: true, OpMakeChecklist: true, OpClearChecklist: true,
	OpCollapse: true, OpExpand: true, OpToggleCollapsed: true, OpCollapseParent: true,
	OpZoomIn: true, OpPin: true, OpUnpin: true, OpOpenPin: true, OpSelect: true,
	OpExtendSelection: true,
}

// Command is one user intent against a session, as received over HTTP or MCP.
type Command struct {
	Op        string           `json:"op"`
	ID        string           `json:"id,omitempty"`
	Target    string           `json:"target,omitempty"`
	Position  models.Position  `json:"position,omitempty"`
	Direction models.Direction `json:"direction,omitempty"`
	Offset    int              `json:"offset,omitempty"`
	Text      string           `json:"text,omitempty"`
	IDs       []string         `json:"ids,omitempty"`
	From      int              `json:"from,omitempty"`
	To        int              `json:"to,omitempty"`
	// Date is YYYY-MM-DD for open_day; empty means today.
	Date string `json:"date,omitempty"`
}

// Validate checks that the command carries the fields its op needs.
func (c *Command) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Op, validation.Required, validation.In(allOps...)),
		validation.Field(&c.ID, validation.When(nodeOps[c.Op], validation.Required)),
		validation.Field(&c.Target, validation.When(c.Op == OpMove, validation.Required)),
		validation.Field(&c.Position, validation.When(c.Op == OpMove,
			validation.Required, validation.In(models.Before, models.After, models.Child))),
		validation.Field(&c.Direction, validation.When(c.Op == OpReorder || c.Op == OpExtendSelection,
			validation.Required, validation.In(models.Up, models.Down))),
		validation.Field(&c.Offset, validation.Min(0)),
		validation.Field(&c.From, validation.Min(0)),
		validation.Field(&c.To, validation.Min(0)),
		validation.Field(&c.Date, validation.When(c.Date != "", validation.Date("2006-01-02"))),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidCommand, err)
	}
	return nil
}

// Result reports what a command did.
type Result struct {
	Changed bool         `json:"changed"`
	Focus   models.Focus `json:"focus"`
}
