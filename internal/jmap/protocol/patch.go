package protocol

import "strings"

// PatchOp is a single sparse-patch operation for a */set update. Path
// components are joined with "/" only at encode time, which keeps IDs
// containing literal slashes unambiguous at the call site. A nil Value
// removes the addressed entry.
type PatchOp struct {
	Path  []string
	Value interface{}
}

// BuildPatch encodes patch operations into the update-patch map form of
// Email/set. Later operations on the same path overwrite earlier ones.
func BuildPatch(ops []PatchOp) map[string]interface{} {
	patch := make(map[string]interface{}, len(ops))
	for _, op := range ops {
		patch[strings.Join(op.Path, "/")] = op.Value
	}
	return patch
}

// AddMailbox returns a patch operation adding the email to a mailbox.
func AddMailbox(id Id) PatchOp {
	return PatchOp{Path: []string{"mailboxIds", string(id)}, Value: true}
}

// RemoveMailbox returns a patch operation removing the email from a
// mailbox.
func RemoveMailbox(id Id) PatchOp {
	return PatchOp{Path: []string{"mailboxIds", string(id)}, Value: nil}
}

// SetKeyword returns a patch operation setting or clearing a keyword.
func SetKeyword(keyword string, set bool) PatchOp {
	if set {
		return PatchOp{Path: []string{"keywords", keyword}, Value: true}
	}
	return PatchOp{Path: []string{"keywords", keyword}, Value: nil}
}

// ReplaceMailboxes returns a patch operation replacing the entire
// mailbox membership with a single target; used by move.
func ReplaceMailboxes(target Id) PatchOp {
	return PatchOp{Path: []string{"mailboxIds"}, Value: map[Id]bool{target: true}}
}
