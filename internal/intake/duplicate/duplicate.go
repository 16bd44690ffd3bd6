// Package duplicate checks the CRM for earlier cases with the same phone
// number. The check is advisory: any failure reads as "not a duplicate".
package duplicate

import (
	"context"
	"sort"
	"time"

	"lead-intake/internal/common/crm"
	apperrors "lead-intake/internal/common/errors"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/intake/errorlog"
)

// CaseSearcher is the part of the CRM client the reconciler needs.
type CaseSearcher interface {
	ListCases(ctx context.Context, phone string) (*crm.CaseList, error)
	ListCaseOwners(ctx context.Context) ([]crm.Manager, error)
}

type Result struct {
	IsDuplicate bool
	Count       int
	PriorCaseID string
	PriorOwner  string
}

// notDuplicate is the degraded result.
var notDuplicate = Result{IsDuplicate: false, Count: 1}

type Reconciler struct {
	crm      CaseSearcher
	errorLog errorlog.Sink
	logger   logger.Logger
}

func NewReconciler(searcher CaseSearcher, sink errorlog.Sink, log logger.Logger) *Reconciler {
	return &Reconciler{
		crm:      searcher,
		errorLog: sink,
		logger:   log.WithFields(map[string]interface{}{"component": "duplicate"}),
	}
}

// Check looks up phone in the CRM. The most recent match is taken to be the
// case of the current submission, so the second most recent is the prior
// case whose owner is reported.
func (r *Reconciler) Check(ctx context.Context, phone string) Result {
	phone = crm.FormatPhone(phone)
	if phone == "" {
		return notDuplicate
	}

	list, err := r.crm.ListCases(ctx, phone)
	if err != nil {
		r.logger.Warn("duplicate check degraded", map[string]interface{}{"error": err.Error()})
		r.errorLog.Record(ctx, errorlog.Entry{
			ErrorType: apperrors.ErrCodeDuplicateCheckDegraded,
			Phone:     phone,
			Message:   err.Error(),
		})
		return notDuplicate
	}

	cases := sortNewestFirst(list.List)
	count := max(1, list.Total, len(cases))
	if len(cases) < 2 {
		return Result{IsDuplicate: false, Count: count}
	}

	prior := cases[1]
	res := Result{
		IsDuplicate: true,
		Count:       count,
		PriorCaseID: string(prior.CaseID),
		PriorOwner:  r.resolveOwner(ctx, prior),
	}
	r.logger.Info("duplicate case detected", map[string]interface{}{
		"priorCaseId": res.PriorCaseID,
		"priorOwner":  res.PriorOwner,
		"count":       res.Count,
	})
	return res
}

// resolveOwner maps the prior case's manager id to a name, falling back to
// the free-text name on the case.
func (r *Reconciler) resolveOwner(ctx context.Context, c crm.Case) string {
	if c.Manager == "" {
		return c.ManagerName
	}

	managers, err := r.crm.ListCaseOwners(ctx)
	if err != nil {
		r.logger.Warn("case owner lookup failed", map[string]interface{}{
			"managerId": string(c.Manager),
			"error":     err.Error(),
		})
		return c.ManagerName
	}
	for _, m := range managers {
		if m.ID == c.Manager && m.Name != "" {
			return m.Name
		}
	}
	return c.ManagerName
}

// sortNewestFirst orders by creation time, newest first. Cases with an
// unreadable timestamp keep their relative order after the dated ones.
func sortNewestFirst(cases []crm.Case) []crm.Case {
	type dated struct {
		c  crm.Case
		t  time.Time
		ok bool
	}
	items := make([]dated, len(cases))
	for i, c := range cases {
		t, ok := c.CreatedAt()
		items[i] = dated{c: c, t: t, ok: ok}
	}

	sort.SliceStable(items, func(a, b int) bool {
		if items[a].ok && items[b].ok {
			return items[a].t.After(items[b].t)
		}
		return items[a].ok && !items[b].ok
	})

	out := make([]crm.Case, len(items))
	for i, it := range items {
		out[i] = it.c
	}
	return out
}
