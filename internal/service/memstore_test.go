package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/agency-case-api/internal/models"
	"github.com/noah-isme/agency-case-api/internal/repository"
)

// memState is the table contents of the in-memory store.
type memState struct {
	cases        map[string]models.Case
	leads        map[string]models.Lead
	catalog      map[string]models.CatalogService
	snapshots    []models.ServiceSnapshot
	appointments []models.Appointment
	rewards      map[string]models.Reward
	payouts      map[string]models.PayoutRequest
	transactions []models.PayoutTransaction
	audit        []models.AuditLog
	configs      map[string]models.Configuration
}

func newMemState() *memState {
	return &memState{
		cases:   map[string]models.Case{},
		leads:   map[string]models.Lead{},
		catalog: map[string]models.CatalogService{},
		rewards: map[string]models.Reward{},
		payouts: map[string]models.PayoutRequest{},
		configs: map[string]models.Configuration{},
	}
}

func (s *memState) clone() *memState {
	out := newMemState()
	for k, v := range s.cases {
		out.cases[k] = v
	}
	for k, v := range s.leads {
		out.leads[k] = v
	}
	for k, v := range s.catalog {
		out.catalog[k] = v
	}
	for k, v := range s.rewards {
		out.rewards[k] = v
	}
	for k, v := range s.payouts {
		v.LinkedRewardIDs = append([]string(nil), v.LinkedRewardIDs...)
		v.LinkedCaseIDs = append([]string(nil), v.LinkedCaseIDs...)
		v.LinkedStudentNames = append([]string(nil), v.LinkedStudentNames...)
		out.payouts[k] = v
	}
	for k, v := range s.configs {
		out.configs[k] = v
	}
	out.snapshots = append(out.snapshots, s.snapshots...)
	out.appointments = append(out.appointments, s.appointments...)
	out.transactions = append(out.transactions, s.transactions...)
	out.audit = append(out.audit, s.audit...)
	return out
}

// memDB serialises units of work like row locks would and rolls state back
// when a unit of work fails.
type memDB struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	state *memState

	failures       map[string]error
	onStatusUpdate func(state *memState, params repository.UpdateCaseStatusParams)
}

func newMemDB() *memDB {
	return &memDB{state: newMemState(), failures: map[string]error{}}
}

func (db *memDB) fail(op string) error {
	return db.failures[op]
}

func (db *memDB) setFailure(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failures[op] = err
}

func (db *memDB) snapshot() *memState {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.clone()
}

func (db *memDB) store() Store {
	return Store{
		Cases:          &memCases{db},
		Leads:          &memLeads{db},
		Catalog:        &memCatalog{db},
		Snapshots:      &memSnapshots{db},
		Appointments:   &memAppointments{db},
		Rewards:        &memRewards{db},
		Payouts:        &memPayouts{db},
		Transactions:   &memTransactions{db},
		Audit:          &memAudit{db},
		Configurations: &memConfigs{db},
	}
}

func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()
	before := db.snapshot()
	if err := fn(ctx, db.store()); err != nil {
		db.mu.Lock()
		db.state = before
		db.mu.Unlock()
		return err
	}
	return nil
}

type memCases struct{ db *memDB }

func (r *memCases) Create(ctx context.Context, c *models.Case) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.state.cases[c.ID]; ok {
		return fmt.Errorf("duplicate case %s", c.ID)
	}
	r.db.state.cases[c.ID] = *c
	return nil
}

func (r *memCases) GetByID(ctx context.Context, id string) (*models.Case, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.state.cases[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (r *memCases) GetForUpdate(ctx context.Context, id string) (*models.Case, error) {
	return r.GetByID(ctx, id)
}

func (r *memCases) GetByLeadID(ctx context.Context, leadID string) (*models.Case, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.state.cases {
		if c.LeadID == leadID {
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memCases) List(ctx context.Context, filter models.CaseFilter) ([]models.Case, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.Case, 0)
	for _, c := range r.db.state.cases {
		if len(filter.Status) > 0 && !containsStatus(filter.Status, c.Status) {
			continue
		}
		if filter.AssignedLawyerID != "" && (c.AssignedLawyerID == nil || *c.AssignedLawyerID != filter.AssignedLawyerID) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func containsStatus(list []models.CaseStatus, s models.CaseStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r *memCases) ListPaid(ctx context.Context, filter models.LedgerFilter) ([]models.Case, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.Case, 0)
	for _, c := range r.db.state.cases {
		if c.PaidAt == nil {
			continue
		}
		if filter.From != nil && c.PaidAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !c.PaidAt.Before(*filter.To) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memCases) UpdateStatus(ctx context.Context, params repository.UpdateCaseStatusParams) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("cases.update_status"); err != nil {
		return err
	}
	if r.db.onStatusUpdate != nil {
		r.db.onStatusUpdate(r.db.state, params)
	}
	c, ok := r.db.state.cases[params.ID]
	if !ok || c.Status != params.From {
		return sql.ErrNoRows
	}
	c.Status = params.To
	if c.PaidAt == nil && params.PaidAt != nil {
		at := *params.PaidAt
		c.PaidAt = &at
	}
	if c.PaidCountdownStartedAt == nil && params.CountdownStartedAt != nil {
		at := *params.CountdownStartedAt
		c.PaidCountdownStartedAt = &at
	}
	c.Version++
	c.UpdatedAt = params.Now
	r.db.state.cases[params.ID] = c
	return nil
}

func (r *memCases) Assign(ctx context.Context, id, lawyerID string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.state.cases[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.AssignedLawyerID = &lawyerID
	c.AssignedAt = &at
	c.Version++
	r.db.state.cases[id] = c
	return nil
}

func (r *memCases) IncrementMoney(ctx context.Context, id string, delta repository.MoneyDelta, currency string, now time.Time) (*models.Case, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.state.cases[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c.ServiceFee += delta.ServiceFee
	c.InfluencerCommission += delta.InfluencerCommission
	c.LawyerCommission += delta.LawyerCommission
	c.ReferralDiscount += delta.ReferralDiscount
	c.SchoolCommission += delta.SchoolCommission
	c.TranslationFee += delta.TranslationFee
	if c.Currency == "" {
		c.Currency = currency
	}
	c.Version++
	c.UpdatedAt = now
	r.db.state.cases[id] = c
	return &c, nil
}

func (r *memCases) SetMoney(ctx context.Context, id string, fields models.MoneyFields, now time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.state.cases[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.ServiceFee = fields.ServiceFee
	c.InfluencerCommission = fields.InfluencerCommission
	c.LawyerCommission = fields.LawyerCommission
	c.ReferralDiscount = fields.ReferralDiscount
	c.SchoolCommission = fields.SchoolCommission
	c.TranslationFee = fields.TranslationFee
	c.Version++
	r.db.state.cases[id] = c
	return nil
}

// Delete mimics the foreign keys on snapshots, appointments and rewards.
func (r *memCases) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.state.cases[id]; !ok {
		return sql.ErrNoRows
	}
	for _, s := range r.db.state.snapshots {
		if s.CaseID == id {
			return errors.New("foreign key violation: service_snapshots")
		}
	}
	for _, rw := range r.db.state.rewards {
		if rw.CaseID == id {
			return errors.New("foreign key violation: rewards")
		}
	}
	delete(r.db.state.cases, id)
	return nil
}

type memLeads struct{ db *memDB }

func (r *memLeads) GetForUpdate(ctx context.Context, id string) (*models.Lead, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	l, ok := r.db.state.leads[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &l, nil
}

func (r *memLeads) TouchContacted(ctx context.Context, id string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("leads.touch"); err != nil {
		return err
	}
	l, ok := r.db.state.leads[id]
	if !ok {
		return sql.ErrNoRows
	}
	l.LastContactedAt = &at
	r.db.state.leads[id] = l
	return nil
}

func (r *memLeads) LinkCase(ctx context.Context, id, caseID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	l, ok := r.db.state.leads[id]
	if !ok || l.CaseID != nil {
		return sql.ErrNoRows
	}
	l.CaseID = &caseID
	r.db.state.leads[id] = l
	return nil
}

func (r *memLeads) UnlinkCase(ctx context.Context, caseID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, l := range r.db.state.leads {
		if l.CaseID != nil && *l.CaseID == caseID {
			l.CaseID = nil
			r.db.state.leads[id] = l
		}
	}
	return nil
}

type memCatalog struct{ db *memDB }

func (r *memCatalog) GetByIDs(ctx context.Context, ids []string) ([]models.CatalogService, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.CatalogService, 0, len(ids))
	for _, id := range ids {
		if svc, ok := r.db.state.catalog[id]; ok && svc.Active {
			out = append(out, svc)
		}
	}
	return out, nil
}

type memSnapshots struct{ db *memDB }

func (r *memSnapshots) Insert(ctx context.Context, s *models.ServiceSnapshot) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("snapshots.insert"); err != nil {
		return false, err
	}
	for _, existing := range r.db.state.snapshots {
		if existing.CaseID == s.CaseID && existing.MasterServiceID == s.MasterServiceID {
			return false, nil
		}
	}
	r.db.state.snapshots = append(r.db.state.snapshots, *s)
	return true, nil
}

func (r *memSnapshots) ListByCase(ctx context.Context, caseID string) ([]models.ServiceSnapshot, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.ServiceSnapshot, 0)
	for _, s := range r.db.state.snapshots {
		if s.CaseID == caseID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSnapshots) GetByID(ctx context.Context, caseID, id string) (*models.ServiceSnapshot, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, s := range r.db.state.snapshots {
		if s.CaseID == caseID && s.ID == id {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memSnapshots) MarkPaid(ctx context.Context, caseID, id string, at time.Time) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, s := range r.db.state.snapshots {
		if s.CaseID == caseID && s.ID == id {
			if s.PaymentStatus == models.PaymentStatusPaid {
				return false, nil
			}
			s.PaymentStatus = models.PaymentStatusPaid
			s.PaidAt = &at
			r.db.state.snapshots[i] = s
			return true, nil
		}
	}
	return false, nil
}

func (r *memSnapshots) DeleteByCase(ctx context.Context, caseID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("snapshots.delete"); err != nil {
		return 0, err
	}
	kept := r.db.state.snapshots[:0:0]
	var removed int64
	for _, s := range r.db.state.snapshots {
		if s.CaseID == caseID {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	r.db.state.snapshots = kept
	return removed, nil
}

type memAppointments struct{ db *memDB }

func (r *memAppointments) DeleteByCase(ctx context.Context, caseID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("appointments.delete"); err != nil {
		return 0, err
	}
	kept := r.db.state.appointments[:0:0]
	var removed int64
	for _, a := range r.db.state.appointments {
		if a.CaseID == caseID {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	r.db.state.appointments = kept
	return removed, nil
}

type memRewards struct{ db *memDB }

func (r *memRewards) Accrue(ctx context.Context, reward *models.Reward) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.state.rewards {
		if existing.CaseID == reward.CaseID && existing.OwnerRole == reward.OwnerRole {
			return false, nil
		}
	}
	if reward.ID == "" {
		reward.ID = uuid.NewString()
	}
	r.db.state.rewards[reward.ID] = *reward
	return true, nil
}

func (r *memRewards) ListByIDsForUpdate(ctx context.Context, ids []string) ([]models.Reward, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.Reward, 0, len(ids))
	for _, id := range ids {
		if rw, ok := r.db.state.rewards[id]; ok {
			out = append(out, rw)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRewards) ListByOwner(ctx context.Context, ownerID string) ([]models.Reward, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.Reward, 0)
	for _, rw := range r.db.state.rewards {
		if rw.OwnerID == ownerID {
			out = append(out, rw)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRewards) MarkRequested(ctx context.Context, ids []string, requestID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, id := range ids {
		rw, ok := r.db.state.rewards[id]
		if !ok || rw.Status != models.RewardStatusPending {
			continue
		}
		rw.Status = models.RewardStatusRequested
		rid := requestID
		rw.PayoutRequestID = &rid
		r.db.state.rewards[id] = rw
		n++
	}
	return n, nil
}

func (r *memRewards) Release(ctx context.Context, requestID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, rw := range r.db.state.rewards {
		if rw.PayoutRequestID != nil && *rw.PayoutRequestID == requestID && rw.Status == models.RewardStatusRequested {
			rw.Status = models.RewardStatusPending
			rw.PayoutRequestID = nil
			r.db.state.rewards[id] = rw
			n++
		}
	}
	return n, nil
}

func (r *memRewards) MarkPaid(ctx context.Context, requestID string, at time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("rewards.mark_paid"); err != nil {
		return 0, err
	}
	var n int64
	for id, rw := range r.db.state.rewards {
		if rw.PayoutRequestID != nil && *rw.PayoutRequestID == requestID && rw.Status != models.RewardStatusPaid {
			rw.Status = models.RewardStatusPaid
			paidAt := at
			rw.PaidAt = &paidAt
			r.db.state.rewards[id] = rw
			n++
		}
	}
	return n, nil
}

func (r *memRewards) ListByCaseForUpdate(ctx context.Context, caseID string) ([]models.Reward, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("rewards.list_case"); err != nil {
		return nil, err
	}
	out := make([]models.Reward, 0)
	for _, rw := range r.db.state.rewards {
		if rw.CaseID == caseID {
			out = append(out, rw)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerRole < out[j].OwnerRole })
	return out, nil
}

func (r *memRewards) Reprice(ctx context.Context, id string, amount int64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rw, ok := r.db.state.rewards[id]
	if !ok || rw.Status != models.RewardStatusPending {
		return false, nil
	}
	rw.Amount = amount
	r.db.state.rewards[id] = rw
	return true, nil
}

func (r *memRewards) CountInFlight(ctx context.Context, caseID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, rw := range r.db.state.rewards {
		if rw.CaseID == caseID && rw.Status == models.RewardStatusRequested {
			n++
		}
	}
	return n, nil
}

func (r *memRewards) DeleteByCase(ctx context.Context, caseID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("rewards.delete"); err != nil {
		return 0, err
	}
	var n int64
	for id, rw := range r.db.state.rewards {
		if rw.CaseID == caseID {
			delete(r.db.state.rewards, id)
			n++
		}
	}
	return n, nil
}

type memPayouts struct{ db *memDB }

func (r *memPayouts) Create(ctx context.Context, p *models.PayoutRequest) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.state.payouts[p.ID] = *p
	return nil
}

func (r *memPayouts) GetByID(ctx context.Context, id string) (*models.PayoutRequest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.state.payouts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (r *memPayouts) GetForUpdate(ctx context.Context, id string) (*models.PayoutRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *memPayouts) List(ctx context.Context, filter models.PayoutFilter) ([]models.PayoutRequest, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.PayoutRequest, 0)
	for _, p := range r.db.state.payouts {
		if filter.RequestorID != "" && p.RequestorID != filter.RequestorID {
			continue
		}
		if len(filter.Status) > 0 {
			match := false
			for _, s := range filter.Status {
				match = match || s == p.Status
			}
			if !match {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *memPayouts) Transition(ctx context.Context, params repository.PayoutTransitionParams) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.state.payouts[params.ID]
	if !ok || p.Status != params.From {
		return sql.ErrNoRows
	}
	at := params.At
	actor := params.ActorID
	p.Status = params.To
	switch params.To {
	case models.PayoutStatusApproved:
		p.ApprovedAt, p.ApprovedBy, p.ApprovalNotes = &at, &actor, params.Notes
	case models.PayoutStatusRejected:
		p.RejectedAt, p.RejectedBy, p.RejectReason = &at, &actor, params.Reason
	case models.PayoutStatusPaid:
		p.PaidAt, p.PaidBy, p.PaymentNotes = &at, &actor, params.Notes
		p.PaymentMethod, p.TransactionRef = params.PaymentMethod, params.TransactionRef
	}
	r.db.state.payouts[params.ID] = p
	return nil
}

func (r *memPayouts) CountOpenForCase(ctx context.Context, caseID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, p := range r.db.state.payouts {
		if p.Status != models.PayoutStatusPending && p.Status != models.PayoutStatusApproved {
			continue
		}
		for _, id := range p.LinkedCaseIDs {
			if id == caseID {
				n++
				break
			}
		}
	}
	return n, nil
}

type memTransactions struct{ db *memDB }

func (r *memTransactions) Append(ctx context.Context, tx *models.PayoutTransaction) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("transactions.append"); err != nil {
		return err
	}
	for _, existing := range r.db.state.transactions {
		if existing.PayoutRequestID == tx.PayoutRequestID {
			return fmt.Errorf("duplicate transaction for %s", tx.PayoutRequestID)
		}
	}
	r.db.state.transactions = append(r.db.state.transactions, *tx)
	return nil
}

type memAudit struct{ db *memDB }

func (r *memAudit) Create(ctx context.Context, log *models.AuditLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if err := r.db.fail("audit.create"); err != nil {
		return err
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	r.db.state.audit = append(r.db.state.audit, *log)
	return nil
}

func (r *memAudit) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.AuditLog, 0)
	for _, entry := range r.db.state.audit {
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.TargetID != "" && (entry.TargetID == nil || *entry.TargetID != filter.TargetID) {
			continue
		}
		if filter.ActorID != "" && entry.ActorID != filter.ActorID {
			continue
		}
		out = append(out, entry)
	}
	return out, len(out), nil
}

type memConfigs struct{ db *memDB }

func (r *memConfigs) ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]models.Configuration, 0, len(keys))
	for _, k := range keys {
		if cfg, ok := r.db.state.configs[k]; ok {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (r *memConfigs) Get(ctx context.Context, key string) (*models.Configuration, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cfg, ok := r.db.state.configs[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &cfg, nil
}

func (r *memConfigs) Upsert(ctx context.Context, cfg *models.Configuration) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.state.configs[cfg.Key]
	cfg.Version = 1
	if ok {
		cfg.Version = existing.Version + 1
	}
	r.db.state.configs[cfg.Key] = *cfg
	return cfg.Version, nil
}

// auditActions lists recorded audit actions in write order.
func (db *memDB) auditActions() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, 0, len(db.state.audit))
	for _, entry := range db.state.audit {
		out = append(out, entry.Action)
	}
	return out
}

func (db *memDB) caseByID(id string) models.Case {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.cases[id]
}

func (db *memDB) rewardByID(id string) models.Reward {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.rewards[id]
}

func (db *memDB) payoutByID(id string) models.PayoutRequest {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.payouts[id]
}

func (db *memDB) put(fn func(state *memState)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	fn(db.state)
}
