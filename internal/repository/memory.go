package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"tenantbot/internal/entities"
	"tenantbot/internal/interfaces"
)

type badwordKey struct {
	tenantID      int
	phrase        string
	caseSensitive bool
}

// MemoryStore keeps everything in process. It backs development runs
// without DATABASE_URL and the package tests.
type MemoryStore struct {
	guard *Guard

	mu         sync.Mutex
	nextID     int
	tenants    map[int]*entities.Tenant
	energy     map[int]*entities.EnergyState
	badwords   map[int]entities.BadwordRule
	redactions map[int]entities.RedactionRule
	whitelist  map[int]entities.WhitelistPhrase
	costs      map[int]map[entities.ContentType]int
	autocorr   map[int]entities.AutocorrectSetting
	power      map[int]entities.PowerMessage
	scopes     map[int]entities.ChatScope
	baselines  map[int]entities.ProfileBaseline
	protection map[int]entities.ProtectionSettings

	// energyFaults are returned, in order, by the next MutateEnergy calls.
	energyFaults []error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		guard:      NewGuard(),
		tenants:    make(map[int]*entities.Tenant),
		energy:     make(map[int]*entities.EnergyState),
		badwords:   make(map[int]entities.BadwordRule),
		redactions: make(map[int]entities.RedactionRule),
		whitelist:  make(map[int]entities.WhitelistPhrase),
		costs:      make(map[int]map[entities.ContentType]int),
		autocorr:   make(map[int]entities.AutocorrectSetting),
		power:      make(map[int]entities.PowerMessage),
		scopes:     make(map[int]entities.ChatScope),
		baselines:  make(map[int]entities.ProfileBaseline),
		protection: make(map[int]entities.ProtectionSettings),
	}
}

func (m *MemoryStore) do(ctx context.Context, fn func() error) error {
	return m.guard.Do(ctx, func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		return fn()
	})
}

func (m *MemoryStore) id() int {
	m.nextID++
	return m.nextID
}

// InjectEnergyFaults makes the next len(errs) energy mutations fail.
func (m *MemoryStore) InjectEnergyFaults(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.energyFaults = append(m.energyFaults, errs...)
}

// Tenants

func (m *MemoryStore) CreateTenant(ctx context.Context, t entities.Tenant) (entities.Tenant, error) {
	err := m.do(ctx, func() error {
		if t.ID == 0 {
			t.ID = m.id()
		} else if t.ID > m.nextID {
			m.nextID = t.ID
		}
		tenant := t
		m.tenants[t.ID] = &tenant
		state := entities.DefaultEnergyState(time.Now())
		m.energy[t.ID] = &state
		return nil
	})
	return t, err
}

// PutEnergy overwrites a tenant's energy row.
func (m *MemoryStore) PutEnergy(tenantID int, state entities.EnergyState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := state
	m.energy[tenantID] = &s
}

func (m *MemoryStore) GetTenant(ctx context.Context, tenantID int) (*entities.Tenant, error) {
	var out *entities.Tenant
	err := m.do(ctx, func() error {
		if t, ok := m.tenants[tenantID]; ok {
			cp := *t
			out = &cp
		}
		return nil
	})
	return out, err
}

func (m *MemoryStore) SetConnected(ctx context.Context, tenantID int, connected bool) error {
	return m.do(ctx, func() error {
		if t, ok := m.tenants[tenantID]; ok {
			t.Connected = connected
		}
		return nil
	})
}

func (m *MemoryStore) ListConnectedTenants(ctx context.Context) ([]entities.Tenant, error) {
	var out []entities.Tenant
	err := m.do(ctx, func() error {
		for _, t := range m.tenants {
			if t.Connected {
				out = append(out, *t)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (m *MemoryStore) MutateEnergy(ctx context.Context, tenantID int, fn interfaces.EnergyMutator) (entities.EnergyState, error) {
	var out entities.EnergyState
	err := m.do(ctx, func() error {
		if len(m.energyFaults) > 0 {
			fault := m.energyFaults[0]
			m.energyFaults = m.energyFaults[1:]
			return fault
		}
		current, ok := m.energy[tenantID]
		if !ok {
			return entities.ErrTenantNotFound
		}
		next := *current
		dirty, err := fn(&next)
		if err != nil {
			return err
		}
		if dirty {
			*current = next
		}
		out = next
		return nil
	})
	return out, err
}

// Badwords

func (m *MemoryStore) ListBadwords(ctx context.Context, tenantID int) ([]entities.BadwordRule, error) {
	var out []entities.BadwordRule
	err := m.do(ctx, func() error {
		for _, b := range m.badwords {
			if b.TenantID == tenantID {
				out = append(out, b)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (m *MemoryStore) UpsertBadword(ctx context.Context, rule entities.BadwordRule) (entities.BadwordRule, error) {
	err := m.do(ctx, func() error {
		key := badwordKey{rule.TenantID, rule.Phrase, rule.CaseSensitive}
		for id, b := range m.badwords {
			if (badwordKey{b.TenantID, b.Phrase, b.CaseSensitive}) == key {
				rule.ID = id
			}
		}
		if rule.ID == 0 {
			rule.ID = m.id()
		}
		m.badwords[rule.ID] = rule
		return nil
	})
	return rule, err
}

func (m *MemoryStore) DeleteBadword(ctx context.Context, tenantID, id int) error {
	return m.do(ctx, func() error {
		if b, ok := m.badwords[id]; ok && b.TenantID == tenantID {
			delete(m.badwords, id)
		}
		return nil
	})
}

// Custom redactions

func (m *MemoryStore) ListRedactions(ctx context.Context, tenantID int) ([]entities.RedactionRule, error) {
	var out []entities.RedactionRule
	err := m.do(ctx, func() error {
		for _, r := range m.redactions {
			if r.TenantID == tenantID {
				out = append(out, r)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (m *MemoryStore) UpsertRedaction(ctx context.Context, rule entities.RedactionRule) (entities.RedactionRule, error) {
	err := m.do(ctx, func() error {
		for id, r := range m.redactions {
			if r.TenantID == rule.TenantID && r.Original == rule.Original {
				rule.ID = id
			}
		}
		if rule.ID == 0 {
			rule.ID = m.id()
		}
		m.redactions[rule.ID] = rule
		return nil
	})
	return rule, err
}

func (m *MemoryStore) DeleteRedaction(ctx context.Context, tenantID, id int) error {
	return m.do(ctx, func() error {
		if r, ok := m.redactions[id]; ok && r.TenantID == tenantID {
			delete(m.redactions, id)
		}
		return nil
	})
}

// Whitelist

func (m *MemoryStore) ListWhitelist(ctx context.Context, tenantID int) ([]entities.WhitelistPhrase, error) {
	var out []entities.WhitelistPhrase
	err := m.do(ctx, func() error {
		for _, w := range m.whitelist {
			if w.TenantID == tenantID {
				out = append(out, w)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (m *MemoryStore) UpsertWhitelist(ctx context.Context, phrase entities.WhitelistPhrase) (entities.WhitelistPhrase, error) {
	err := m.do(ctx, func() error {
		for id, w := range m.whitelist {
			if w.TenantID == phrase.TenantID && w.Phrase == phrase.Phrase && w.CaseSensitive == phrase.CaseSensitive {
				phrase.ID = id
			}
		}
		if phrase.ID == 0 {
			phrase.ID = m.id()
		}
		m.whitelist[phrase.ID] = phrase
		return nil
	})
	return phrase, err
}

func (m *MemoryStore) DeleteWhitelist(ctx context.Context, tenantID, id int) error {
	return m.do(ctx, func() error {
		if w, ok := m.whitelist[id]; ok && w.TenantID == tenantID {
			delete(m.whitelist, id)
		}
		return nil
	})
}

// Energy costs

func (m *MemoryStore) ListEnergyCosts(ctx context.Context, tenantID int) ([]entities.EnergyCost, error) {
	var out []entities.EnergyCost
	err := m.do(ctx, func() error {
		for contentType, cost := range m.costs[tenantID] {
			out = append(out, entities.EnergyCost{TenantID: tenantID, ContentType: contentType, Cost: cost})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ContentType < out[j].ContentType })
	return out, err
}

func (m *MemoryStore) GetEnergyCost(ctx context.Context, tenantID int, contentType entities.ContentType) (int, bool, error) {
	var cost int
	var found bool
	err := m.do(ctx, func() error {
		cost, found = m.costs[tenantID][contentType]
		return nil
	})
	return cost, found, err
}

func (m *MemoryStore) UpsertEnergyCost(ctx context.Context, cost entities.EnergyCost) error {
	return m.do(ctx, func() error {
		if m.costs[cost.TenantID] == nil {
			m.costs[cost.TenantID] = make(map[entities.ContentType]int)
		}
		m.costs[cost.TenantID][cost.ContentType] = cost.Cost
		return nil
	})
}

func (m *MemoryStore) DeleteEnergyCost(ctx context.Context, tenantID int, contentType entities.ContentType) error {
	return m.do(ctx, func() error {
		delete(m.costs[tenantID], contentType)
		return nil
	})
}

// Autocorrect

func (m *MemoryStore) GetAutocorrect(ctx context.Context, tenantID int) (entities.AutocorrectSetting, error) {
	setting := entities.AutocorrectSetting{TenantID: tenantID}
	err := m.do(ctx, func() error {
		if s, ok := m.autocorr[tenantID]; ok {
			setting = s
		}
		return nil
	})
	return setting, err
}

func (m *MemoryStore) SetAutocorrect(ctx context.Context, setting entities.AutocorrectSetting) error {
	return m.do(ctx, func() error {
		m.autocorr[setting.TenantID] = setting
		return nil
	})
}

// Custom low-energy notices

func (m *MemoryStore) ListPowerMessages(ctx context.Context, tenantID int) ([]entities.PowerMessage, error) {
	var out []entities.PowerMessage
	err := m.do(ctx, func() error {
		for _, p := range m.power {
			if p.TenantID == tenantID {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (m *MemoryStore) UpsertPowerMessage(ctx context.Context, msg entities.PowerMessage) (entities.PowerMessage, error) {
	err := m.do(ctx, func() error {
		if msg.ID == 0 {
			msg.ID = m.id()
		} else if existing, ok := m.power[msg.ID]; !ok || existing.TenantID != msg.TenantID {
			return entities.ErrInvalidRule
		}
		m.power[msg.ID] = msg
		return nil
	})
	return msg, err
}

func (m *MemoryStore) DeletePowerMessage(ctx context.Context, tenantID, id int) error {
	return m.do(ctx, func() error {
		if p, ok := m.power[id]; ok && p.TenantID == tenantID {
			delete(m.power, id)
		}
		return nil
	})
}

// Chat scope

func (m *MemoryStore) GetChatScope(ctx context.Context, tenantID int) (entities.ChatScope, error) {
	scope := entities.ChatScope{Mode: entities.ChatListBlacklist}
	err := m.do(ctx, func() error {
		if s, ok := m.scopes[tenantID]; ok {
			scope = entities.ChatScope{Mode: s.Mode, Chats: append([]string(nil), s.Chats...)}
		}
		return nil
	})
	return scope, err
}

func (m *MemoryStore) SetChatScope(ctx context.Context, tenantID int, scope entities.ChatScope) error {
	return m.do(ctx, func() error {
		m.scopes[tenantID] = entities.ChatScope{Mode: scope.Mode, Chats: append([]string(nil), scope.Chats...)}
		return nil
	})
}

// Profile

func (m *MemoryStore) GetBaseline(ctx context.Context, tenantID int) (*entities.ProfileBaseline, error) {
	var out *entities.ProfileBaseline
	err := m.do(ctx, func() error {
		if b, ok := m.baselines[tenantID]; ok {
			out = &b
		}
		return nil
	})
	return out, err
}

func (m *MemoryStore) SaveBaseline(ctx context.Context, b entities.ProfileBaseline) error {
	if b.LockedAt.IsZero() {
		b.LockedAt = time.Now()
	}
	return m.do(ctx, func() error {
		m.baselines[b.TenantID] = b
		return nil
	})
}

func (m *MemoryStore) SetBaselineActive(ctx context.Context, tenantID int, active bool) error {
	return m.do(ctx, func() error {
		if b, ok := m.baselines[tenantID]; ok {
			b.Active = active
			m.baselines[tenantID] = b
		}
		return nil
	})
}

func (m *MemoryStore) ClearBaseline(ctx context.Context, tenantID int) error {
	return m.do(ctx, func() error {
		delete(m.baselines, tenantID)
		return nil
	})
}

func (m *MemoryStore) GetProtection(ctx context.Context, tenantID int) (entities.ProtectionSettings, error) {
	s := entities.ProtectionSettings{TenantID: tenantID, Enabled: true, Penalty: entities.DefaultProfilePenalty}
	err := m.do(ctx, func() error {
		if p, ok := m.protection[tenantID]; ok {
			s = p
		}
		return nil
	})
	return s, err
}

func (m *MemoryStore) SetProtection(ctx context.Context, s entities.ProtectionSettings) error {
	return m.do(ctx, func() error {
		m.protection[s.TenantID] = s
		return nil
	})
}

var (
	_ interfaces.Store = (*MemoryStore)(nil)
	_ interfaces.Store = (*PostgresStore)(nil)
)
