package jira

import (
	"context"
	"fmt"
	"sort"
	"strings"

	log "github.com/tuannvm/jira-tracker/internal/logging"
	"github.com/tuannvm/jira-tracker/internal/models"
)

// readOnlySignature is the tracker's error text for a field the current
// workflow state does not allow to be written.
const readOnlySignature = "does not exist or read-only"

// AppliedOps records which remote mutations a reconciliation performed.
type AppliedOps struct {
	FieldsUpdated []string
	Transition    string
}

// Reconciler converges an issue on the tracker towards a desired state with
// at most one field update followed by at most one status transition.
type Reconciler struct {
	transport Transport
}

// NewReconciler creates a Reconciler on top of transport.
func NewReconciler(transport Transport) *Reconciler {
	return &Reconciler{transport: transport}
}

// Reconcile applies the difference between desired and current. The field
// update and the transition are separate calls: the tracker rejects both in
// one request. A status the workflow cannot reach from the current status is
// skipped without error.
func (r *Reconciler) Reconcile(ctx context.Context, desired, current *models.Issue) (*AppliedOps, error) {
	key := current.TrackerID
	ops := &AppliedOps{}
	logger := log.With("issue", key)

	update := Diff(desired, current)
	if len(update) > 0 {
		if err := r.transport.UpdateIssue(ctx, key, update); err != nil {
			return ops, &ReconciliationError{
				Key:     key,
				Phase:   PhaseFieldUpdate,
				Message: classifyUpdateError(desired, err),
				Err:     err,
			}
		}
		ops.FieldsUpdated = update.Keys()
		sort.Strings(ops.FieldsUpdated)
		logger.Debugf("Updated fields %v", ops.FieldsUpdated)
	}

	if desired.Status == "" || desired.Status == models.StatusUndefined || desired.Status == current.Status {
		return ops, nil
	}

	name, ok := TransitionName(current.Status, desired.Status)
	if !ok {
		logger.Warnf("No transition known from %s to %s", current.Status, desired.Status)
		return ops, nil
	}

	available, err := r.transport.ListTransitions(ctx, key)
	if err != nil {
		return ops, &ReconciliationError{Key: key, Phase: PhaseTransition, Message: err.Error(), Err: err}
	}
	transition, found := selectTransition(available, name)
	if !found {
		// TODO: surface workflow-disallowed transitions to callers once the
		// product decides whether this is a partial failure.
		logger.Warnf("Transition %q is not available from status %s", name, current.Status)
		return ops, nil
	}
	if err := r.transport.ApplyTransition(ctx, key, transition.ID); err != nil {
		return ops, &ReconciliationError{Key: key, Phase: PhaseTransition, Message: err.Error(), Err: err}
	}
	ops.Transition = transition.Name
	logger.Debugf("Applied transition %q", transition.Name)
	return ops, nil
}

// Diff computes the writable fields of desired that differ from current.
// Issue type and project cannot change after creation and are ignored.
func Diff(desired, current *models.Issue) FieldUpdate {
	update := FieldUpdate{}

	if desired.Summary != current.Summary {
		update[FieldSummary] = desired.Summary
	}
	if desired.Description != current.Description {
		update[FieldDescription] = desired.Description
	}
	if desired.Assignee != current.Assignee {
		if desired.Assignee == "" {
			update[FieldAssignee] = nil
		} else {
			update[FieldAssignee] = desired.Assignee
		}
	}
	if !sameSet(desired.Components, current.Components) {
		update[FieldComponents] = sortedCopy(desired.Components)
	}
	if !sameSet(desired.Labels, current.Labels) {
		update[FieldLabels] = sortedCopy(desired.Labels)
	}

	desiredVersions, desiredMilestone := splitReleases(desired.Releases)
	currentVersions, currentMilestone := splitReleases(current.Releases)
	if !sameSet(desiredVersions, currentVersions) {
		update[FieldFixVersions] = sortedCopy(desiredVersions)
	}
	if desiredMilestone != currentMilestone {
		if desiredMilestone == "" {
			update[FieldTargetRelease] = nil
		} else {
			update[FieldTargetRelease] = desiredMilestone
		}
	}

	for flag := range desired.Stage {
		key, ok := FlagField(flag)
		status := stageValue(desired.Stage, flag)
		if !ok || stageValue(current.Stage, flag) == status {
			continue
		}
		if status == models.FlagNoSet {
			update[key] = nil
		} else {
			update[key] = string(status)
		}
	}
	return update
}

// stageValue reads a flag, treating an absent flag as FlagNoSet.
func stageValue(stage models.Stage, flag models.Flag) models.FlagStatus {
	if status, ok := stage[flag]; ok && status != "" {
		return status
	}
	return models.FlagNoSet
}

func selectTransition(available []models.Transition, name string) (models.Transition, bool) {
	for _, t := range available {
		if t.Name == name {
			return t, true
		}
	}
	return models.Transition{}, false
}

func splitReleases(releases []models.Release) ([]string, string) {
	var versions []string
	milestone := ""
	for _, r := range releases {
		if r.Version != "" {
			versions = append(versions, r.Version)
		}
		if milestone == "" && r.Milestone != "" {
			milestone = r.Milestone
		}
	}
	return versions, milestone
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := sortedCopy(a), sortedCopy(b)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func sortedCopy(s []string) []string {
	out := append([]string{}, s...)
	sort.Strings(out)
	return out
}

// classifyUpdateError turns known tracker failures into a message naming the
// restricted field and the issue; anything else passes through unchanged.
func classifyUpdateError(issue *models.Issue, err error) string {
	msg := err.Error()
	if !strings.Contains(msg, readOnlySignature) {
		return msg
	}
	for _, flag := range []models.Flag{models.FlagPM, models.FlagDev, models.FlagQE} {
		if strings.Contains(msg, flagFields[flag]) {
			return fmt.Sprintf("Flag '%s' set in Issue.stage cannot be set for %s", flag, issueScope(issue))
		}
	}
	if strings.Contains(msg, FieldTargetRelease) {
		return fmt.Sprintf("Release.milestone cannot be set for %s", issueScope(issue))
	}
	return msg
}

func issueScope(issue *models.Issue) string {
	if issue.Product != "" {
		return fmt.Sprintf("issues in project '%s'", issue.Product)
	}
	return fmt.Sprintf("issue at '%s'", issue.URL)
}
