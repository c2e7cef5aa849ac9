package view

import "github.com/virek/vroom/internal/models"

// SuccessorOption is one candidate in the leave dialog's host picker.
type SuccessorOption struct {
	ID       string
	Name     string
	Selected bool
}

// LeaveDialog is the leave-confirmation modal. A host leaving while other
// participants remain must pick a successor before confirm unlocks;
// everyone else confirms unconditionally.
type LeaveDialog struct {
	Visible           bool
	RequiresSuccessor bool
	Successors        []SuccessorOption
	ConfirmEnabled    bool
	Message           string
}

// BuildLeaveDialog derives the modal from the roster and the currently
// picked successor id ("" when none picked yet).
func BuildLeaveDialog(visible, isHost bool, participants []models.Participant, selectedID string) LeaveDialog {
	d := LeaveDialog{Visible: visible}
	if !visible {
		return d
	}

	var remotes []models.Participant
	for _, p := range participants {
		if !p.IsLocal && !p.IsScreenShare {
			remotes = append(remotes, p)
		}
	}

	d.RequiresSuccessor = isHost && len(remotes) > 0
	if !d.RequiresSuccessor {
		d.ConfirmEnabled = true
		d.Message = "Are you sure you want to leave the meeting?"
		return d
	}

	d.Message = "Choose a new host before leaving."
	valid := false
	for _, p := range remotes {
		sel := p.ID == selectedID
		if sel {
			valid = true
		}
		d.Successors = append(d.Successors, SuccessorOption{ID: p.ID, Name: p.Name, Selected: sel})
	}
	d.ConfirmEnabled = valid
	return d
}
