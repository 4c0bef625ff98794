package engine_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"hireline/internal/config"
	"hireline/internal/db"
	"hireline/internal/domain"
	"hireline/internal/engine"
	"hireline/internal/migrate"
	"hireline/internal/repo"
	"hireline/internal/token"
)

const (
	oracle   = "oracle"
	boss     = "boss"
	helper   = "helper"
	stranger = "stranger"
	alice    = "alice"
	bob      = "bob"
	carol    = "carol"
	acme     = "acme"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	cfg, err := config.FromYAML([]byte(`
platform:
  owners: [oracle]
  beneficiary: treasury
token:
  initial_supply:
    tenant:acme: 5000
`))
	require.NoError(t, err)

	eng := engine.New(conn, nil)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	seeded, err := eng.Seed(ctx, cfg)
	require.NoError(t, err)
	require.True(t, seeded)
	return testEnv{Engine: eng, Ctx: ctx}
}

// withTenant creates tenant acme owned by boss with a 1000 token allowance
// for the platform account.
func (env testEnv) withTenant(t *testing.T) {
	t.Helper()
	_, err := env.Engine.CreateTenant(env.Ctx, oracle, acme, "Acme", boss)
	require.NoError(t, err)
	require.NoError(t, env.Engine.ApproveTenantFunds(env.Ctx, boss, acme, 1000))
}

func (env testEnv) register(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := env.Engine.RegisterMember(env.Ctx, id)
		require.NoError(t, err)
	}
}

// withVacancy builds the three-stage pipeline used by most scenarios and
// enables the vacancy.
func (env testEnv) withVacancy(t *testing.T) domain.VacancyKey {
	t.Helper()
	env.withTenant(t)
	key := domain.VacancyKey{TenantID: acme, VacancyID: "backend"}
	_, err := env.Engine.CreateVacancy(env.Ctx, boss, key, 500)
	require.NoError(t, err)
	for _, s := range []domain.Stage{
		{Name: "one", Amount: 100, Approvable: true},
		{Name: "two", Amount: 200, Approvable: false},
		{Name: "three", Amount: 0, Approvable: true},
	} {
		_, err := env.Engine.AppendStage(env.Ctx, boss, key, s)
		require.NoError(t, err)
	}
	_, err = env.Engine.EnableVacancy(env.Ctx, boss, key)
	require.NoError(t, err)
	return key
}

func (env testEnv) eventCount(t *testing.T) int {
	t.Helper()
	evts, err := env.Engine.EventLog(env.Ctx, repo.EventFilter{Limit: 10000})
	require.NoError(t, err)
	return len(evts)
}

func (env testEnv) balance(t *testing.T, account string) int64 {
	t.Helper()
	b, err := env.Engine.BalanceOf(env.Ctx, account)
	require.NoError(t, err)
	return b
}

func (env testEnv) position(t *testing.T, key domain.VacancyKey, member string) int64 {
	t.Helper()
	p, err := env.Engine.Position(env.Ctx, key, member)
	require.NoError(t, err)
	return p
}

func (env testEnv) pool(t *testing.T, key domain.VacancyKey) int64 {
	t.Helper()
	v, err := env.Engine.GetVacancy(env.Ctx, key)
	require.NoError(t, err)
	return v.PoolAmount
}

func TestSeedRunsOnce(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.Settings(env.Ctx)
	require.NoError(t, err)
	require.Equal(t, int64(5), s.ServiceFeePercent)
	require.Equal(t, 6, s.PipelineMaxLength)
	require.Equal(t, "treasury", s.Beneficiary)
	require.Equal(t, int64(5000), env.balance(t, "tenant:acme"))

	seeded, err := env.Engine.Seed(env.Ctx, config.Default())
	require.NoError(t, err)
	require.False(t, seeded)
	require.Equal(t, int64(5000), env.balance(t, "tenant:acme"))
	owners, err := env.Engine.PlatformOwners(env.Ctx)
	require.NoError(t, err)
	require.Equal(t, []string{oracle}, owners)
}

func TestWalkThroughPipeline(t *testing.T) {
	env := newTestEnv(t)
	key := env.withVacancy(t)
	env.register(t, bob)

	require.Equal(t, domain.NotSubscribed, env.position(t, key, bob))
	_, err := env.Engine.Subscribe(env.Ctx, bob, key)
	require.NoError(t, err)
	require.Equal(t, int64(0), env.position(t, key, bob))

	rec, err := env.Engine.ApproveLevelUp(env.Ctx, boss, key, bob)
	require.NoError(t, err)
	require.Equal(t, int64(1), env.position(t, key, bob))
	require.Equal(t, int64(95), rec.Net)
	require.Equal(t, int64(5), rec.Fee)
	require.Equal(t, int64(400), env.pool(t, key))

	rec, err = env.Engine.LevelUp(env.Ctx, oracle, key, bob)
	require.NoError(t, err)
	require.Equal(t, int64(2), env.position(t, key, bob))
	require.Equal(t, domain.GatePlatform, rec.Gate)
	require.Equal(t, int64(200), env.pool(t, key))

	rec, err = env.Engine.ApproveLevelUp(env.Ctx, boss, key, bob)
	require.NoError(t, err)
	require.Equal(t, int64(3), env.position(t, key, bob))
	require.Equal(t, int64(0), rec.Net)
	require.True(t, rec.Passed)

	passed, err := env.Engine.Passed(env.Ctx, key, bob)
	require.NoError(t, err)
	require.True(t, passed)
	require.Equal(t, int64(200), env.pool(t, key))
	require.Equal(t, int64(285), env.balance(t, bob))
	require.Equal(t, int64(15), env.balance(t, "treasury"))
	require.Equal(t, int64(4700), env.balance(t, "tenant:acme"))
	allowance, err := env.Engine.Allowance(env.Ctx, "tenant:acme", "platform")
	require.NoError(t, err)
	require.Equal(t, int64(700), allowance)

	_, err = env.Engine.ApproveLevelUp(env.Ctx, boss, key, bob)
	require.True(t, errors.Is(err, domain.ErrAlreadyPassed))
	_, err = env.Engine.ResetPosition(env.Ctx, boss, key, bob)
	require.True(t, errors.Is(err, domain.ErrAlreadyPassed))

	recs, err := env.Engine.Settlements(env.Ctx, repo.SettlementFilter{MemberID: bob})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, []string{"one", "two", "three"}, []string{recs[0].StageName, recs[1].StageName, recs[2].StageName})
}

func TestWrongGate(t *testing.T) {
	env := newTestEnv(t)
	key := env.withVacancy(t)
	env.register(t, bob)
	_, err := env.Engine.Subscribe(env.Ctx, bob, key)
	require.NoError(t, err)

	_, err = env.Engine.LevelUp(env.Ctx, oracle, key, bob)
	require.True(t, errors.Is(err, domain.ErrWrongGate))
	require.Equal(t, domain.CategoryStatePrecondition, domain.CategoryOf(err))

	_, err = env.Engine.ApproveLevelUp(env.Ctx, boss, key, bob)
	require.NoError(t, err)
	_, err = env.Engine.ApproveLevelUp(env.Ctx, boss, key, bob)
	require.True(t, errors.Is(err, domain.ErrWrongGate))
	require.Equal(t, int64(1), env.position(t, key, bob))
}

func TestLevelUpRequiresSubscription(t *testing.T) {
	env := newTestEnv(t)
	key := env.withVacancy(t)
	env.register(t, bob)

	_, err := env.Engine.LevelUp(env.Ctx, oracle, key, bob)
	require.True(t, errors.Is(err, domain.ErrNotSubscribed))
	_, err = env.Engine.ApproveLevelUp(env.Ctx, boss, key, bob)
	require.True(t, errors.Is(err, domain.ErrNotSubscribed))
	_, err = env.Engine.ResetPosition(env.Ctx, boss, key, bob)
	require.True(t, errors.Is(err, domain.ErrNotSubscribed))
}

func TestSubscribeNeedsEnabledVacancy(t *testing.T) {
	env := newTestEnv(t)
	key := env.withVacancy(t)
	env.register(t, bob)

	_, err := env.Engine.DisableVacancy(env.Ctx, boss, key)
	require.NoError(t, err)
	_, err = env.Engine.Subscribe(env.Ctx, bob, key)
	require.True(t, errors.Is(err, domain.ErrVacancyDisabled))
	require.Equal(t, domain.NotSubscribed, env.position(t, key, bob))

	_, err = env.Engine.EnableVacancy(env.Ctx, boss, key)
	require.NoError(t, err)
	sub, err := env.Engine.Subscribe(env.Ctx, bob, key)
	require.NoError(t, err)
	require.Equal(t, int64(0), sub.CurrentIndex)

	_, err = env.Engine.Subscribe(env.Ctx, bob, key)
	require.True(t, errors.Is(err, domain.ErrAlreadySubscribed))

	subs, err := env.Engine.Subscribers(env.Ctx, key)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	mine, err := env.Engine.MemberSubscriptions(env.Ctx, bob)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "backend", mine[0].VacancyID)
}

func TestCollaboratorCanLevelUpAndReset(t *testing.T) {
	env := newTestEnv(t)
	key := env.withVacancy(t)
	env.register(t, bob)
	require.NoError(t, env.Engine.AddTenantCollaborator(env.Ctx, boss, acme, helper))
	_, err := env.Engine.Subscribe(env.Ctx, bob, key)
	require.NoError(t, err)

	_, err = env.Engine.ApproveLevelUp(env.Ctx, helper, key, bob)
	require.NoError(t, err)
	require.Equal(t, int64(1), env.position(t, key, bob))

	sub, err := env.Engine.ResetPosition(env.Ctx, helper, key, bob)
	require.NoError(t, err)
	require.Equal(t, int64(0), sub.CurrentIndex)
	require.Equal(t, int64(0), env.position(t, key, bob))

	// collaborators cannot manage the tenant itself
	err = env.Engine.AddTenantCollaborator(env.Ctx, helper, acme, stranger)
	require.True(t, errors.Is(err, domain.ErrUnauthorized))
	_, err = env.Engine.CreateVacancy(env.Ctx, helper, domain.VacancyKey{TenantID: acme, VacancyID: "qa"}, 10)
	require.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestInsufficientPool(t *testing.T) {
	env := newTestEnv(t)
	key := env.withVacancy(t)
	env.register(t, bob)
	_, err := env.Engine.Subscribe(env.Ctx, bob, key)
	require.NoError(t, err)

	t.Run("tenant account drained", func(t *testing.T) {
		require.NoError(t, env.Engine.WithdrawTenantFunds(env.Ctx, boss, acme, "elsewhere", 5000))
		_, err := env.Engine.ApproveLevelUp(env.Ctx, boss, key, bob)
		require.True(t, errors.Is(err, domain.ErrInsufficientPool))
		require.Equal(t, domain.CategoryResource, domain.CategoryOf(err))
		require.Equal(t, int64(0), env.position(t, key, bob))
		require.Equal(t, int64(500), env.pool(t, key))
	})

	t.Run("pool below stage amount", func(t *testing.T) {
		require.NoError(t, env.Engine.Mint(env.Ctx, oracle, "tenant:acme", 5000))
		_, err := env.Engine.SetPoolAmount(env.Ctx, boss, key, 99)
		require.NoError(t, err)
		_, err = env.Engine.ApproveLevelUp(env.Ctx, boss, key, bob)
		require.True(t, errors.Is(err, domain.ErrInsufficientPool))
	})

	t.Run("allowance below stage amount", func(t *testing.T) {
		_, err := env.Engine.SetPoolAmount(env.Ctx, boss, key, 500)
		require.NoError(t, err)
		require.NoError(t, env.Engine.ApproveTenantFunds(env.Ctx, boss, acme, 50))
		_, err = env.Engine.ApproveLevelUp(env.Ctx, boss, key, bob)
		require.True(t, errors.Is(err, domain.ErrInsufficientPool))
	})
}

// failingLedger accepts the member payout and then fails the fee transfer.
type failingLedger struct {
	token.Ledger
	failTo string
}

func (l failingLedger) TransferFrom(ctx context.Context, tx *sql.Tx, spender, owner, to string, amount int64) error {
	if to == l.failTo {
		return errors.New("token backend unavailable")
	}
	return l.Ledger.TransferFrom(ctx, tx, spender, owner, to, amount)
}

func TestSettlementIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	key := env.withVacancy(t)
	env.register(t, bob)
	_, err := env.Engine.Subscribe(env.Ctx, bob, key)
	require.NoError(t, err)
	before := env.eventCount(t)

	eng := env.Engine
	eng.Token = failingLedger{Ledger: token.Ledger{DB: eng.DB}, failTo: "treasury"}
	_, err = eng.ApproveLevelUp(env.Ctx, boss, key, bob)
	require.ErrorContains(t, err, "token backend unavailable")

	require.Equal(t, int64(0), env.position(t, key, bob))
	require.Equal(t, int64(500), env.pool(t, key))
	require.Equal(t, int64(0), env.balance(t, bob))
	require.Equal(t, int64(5000), env.balance(t, "tenant:acme"))
	recs, err := env.Engine.Settlements(env.Ctx, repo.SettlementFilter{})
	require.NoError(t, err)
	require.Empty(t, recs)
	require.Equal(t, before, env.eventCount(t))
}

func TestUnauthorizedCallsChangeNothing(t *testing.T) {
	env := newTestEnv(t)
	key := env.withVacancy(t)
	env.register(t, bob, stranger)
	_, err := env.Engine.Subscribe(env.Ctx, bob, key)
	require.NoError(t, err)
	before := env.eventCount(t)

	calls := map[string]func() error{
		"append stage": func() error {
			_, err := env.Engine.AppendStage(env.Ctx, stranger, key, domain.Stage{Name: "x"})
			return err
		},
		"update stage": func() error {
			_, err := env.Engine.UpdateStage(env.Ctx, stranger, key, 0, domain.Stage{Name: "x"})
			return err
		},
		"delete stage": func() error {
			_, err := env.Engine.DeleteStage(env.Ctx, stranger, key, 0)
			return err
		},
		"move stage": func() error {
			_, err := env.Engine.MoveStage(env.Ctx, stranger, key, 0, 1)
			return err
		},
		"enable": func() error {
			_, err := env.Engine.EnableVacancy(env.Ctx, stranger, key)
			return err
		},
		"disable": func() error {
			_, err := env.Engine.DisableVacancy(env.Ctx, stranger, key)
			return err
		},
		"set pool": func() error {
			_, err := env.Engine.SetPoolAmount(env.Ctx, stranger, key, 1)
			return err
		},
		"create vacancy": func() error {
			_, err := env.Engine.CreateVacancy(env.Ctx, stranger, domain.VacancyKey{TenantID: acme, VacancyID: "ops"}, 1)
			return err
		},
		"reset": func() error {
			_, err := env.Engine.ResetPosition(env.Ctx, stranger, key, bob)
			return err
		},
		"approve level up": func() error {
			_, err := env.Engine.ApproveLevelUp(env.Ctx, stranger, key, bob)
			return err
		},
		"level up by tenant owner": func() error {
			_, err := env.Engine.LevelUp(env.Ctx, boss, key, bob)
			return err
		},
		"verify": func() error {
			_, err := env.Engine.VerifyMember(env.Ctx, stranger, bob)
			return err
		},
		"set status of another": func() error {
			_, err := env.Engine.SetMemberStatus(env.Ctx, stranger, bob, domain.StatusClosed)
			return err
		},
		"fee": func() error {
			_, err := env.Engine.SetServiceFeePercent(env.Ctx, stranger, 7)
			return err
		},
		"max length": func() error {
			_, err := env.Engine.SetPipelineMaxLength(env.Ctx, stranger, 10)
			return err
		},
		"beneficiary": func() error {
			_, err := env.Engine.SetBeneficiary(env.Ctx, stranger, stranger)
			return err
		},
		"create tenant": func() error {
			_, err := env.Engine.CreateTenant(env.Ctx, boss, "globex", "Globex", boss)
			return err
		},
		"approve funds": func() error {
			return env.Engine.ApproveTenantFunds(env.Ctx, stranger, acme, 1)
		},
		"withdraw funds": func() error {
			return env.Engine.WithdrawTenantFunds(env.Ctx, stranger, acme, stranger, 1)
		},
		"mint": func() error {
			return env.Engine.Mint(env.Ctx, stranger, stranger, 1)
		},
		"anonymous subscribe": func() error {
			_, err := env.Engine.Subscribe(env.Ctx, "", key)
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.True(t, errors.Is(err, domain.ErrUnauthorized), "got %v", err)
			require.Equal(t, domain.CategoryAuthorization, domain.CategoryOf(err))
		})
	}
	require.Equal(t, before, env.eventCount(t))
	require.Equal(t, int64(0), env.position(t, key, bob))
	require.Equal(t, int64(500), env.pool(t, key))
}

func TestFactConfirmation(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, alice, bob, carol)

	// anyone registered may author, verified or not, about anyone
	_, err := env.Engine.SubmitFact(env.Ctx, alice, alice, "degree", "MSc")
	require.NoError(t, err)
	_, err = env.Engine.SubmitFact(env.Ctx, bob, alice, "employer", "Initech")
	require.NoError(t, err)
	_, err = env.Engine.SubmitFact(env.Ctx, bob, alice, "degree", "BSc")
	require.True(t, errors.Is(err, domain.ErrDuplicateFact))

	// unverified confirmer
	_, err = env.Engine.ConfirmFact(env.Ctx, bob, alice, "degree")
	require.True(t, errors.Is(err, domain.ErrUnverified))

	for _, id := range []string{alice, bob, carol} {
		_, err := env.Engine.VerifyMember(env.Ctx, oracle, id)
		require.NoError(t, err)
	}

	_, err = env.Engine.ConfirmFact(env.Ctx, alice, alice, "degree")
	require.True(t, errors.Is(err, domain.ErrSelfConfirmation))
	_, err = env.Engine.ConfirmFact(env.Ctx, bob, alice, "missing")
	require.True(t, errors.Is(err, domain.ErrNotFound))

	f, err := env.Engine.ConfirmFact(env.Ctx, bob, alice, "degree")
	require.NoError(t, err)
	require.Equal(t, uint64(1), f.ConfirmationCount)
	_, err = env.Engine.ConfirmFact(env.Ctx, bob, alice, "degree")
	require.True(t, errors.Is(err, domain.ErrAlreadyConfirmed))

	_, err = env.Engine.ConfirmFact(env.Ctx, carol, alice, "degree")
	require.NoError(t, err)

	f, err = env.Engine.GetFact(env.Ctx, alice, "degree")
	require.NoError(t, err)
	confirmers, err := env.Engine.FactConfirmers(env.Ctx, alice, "degree")
	require.NoError(t, err)
	require.Equal(t, []string{bob, carol}, confirmers)
	require.Equal(t, uint64(len(confirmers)), f.ConfirmationCount)

	ids, err := env.Engine.FactIDs(env.Ctx, alice)
	require.NoError(t, err)
	require.Equal(t, []string{"degree", "employer"}, ids)
	second, err := env.Engine.FactAt(env.Ctx, alice, 1)
	require.NoError(t, err)
	require.Equal(t, bob, second.AuthorID)
	require.Equal(t, uint64(0), second.ConfirmationCount)
	_, err = env.Engine.FactAt(env.Ctx, alice, 2)
	require.True(t, errors.Is(err, domain.ErrIndexOutOfRange))
}

func TestMemberRegistry(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, alice, bob)

	_, err := env.Engine.RegisterMember(env.Ctx, alice)
	require.True(t, errors.Is(err, domain.ErrAlreadyExists))

	m, err := env.Engine.SetMemberStatus(env.Ctx, alice, alice, domain.StatusInSearchOfWork)
	require.NoError(t, err)
	require.Equal(t, domain.StatusInSearchOfWork, m.Status)
	_, err = env.Engine.SetMemberStatus(env.Ctx, alice, alice, domain.MemberStatus(9))
	require.True(t, errors.Is(err, domain.ErrInvalidArgument))

	_, err = env.Engine.VerifyMember(env.Ctx, oracle, "ghost")
	require.True(t, errors.Is(err, domain.ErrNotFound))

	members, err := env.Engine.ListMembers(env.Ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	second, err := env.Engine.MemberAt(env.Ctx, 1)
	require.NoError(t, err)
	require.Equal(t, bob, second.ID)
}

func TestDeleteStageShiftsLeft(t *testing.T) {
	env := newTestEnv(t)
	env.withTenant(t)
	key := domain.VacancyKey{TenantID: acme, VacancyID: "pipeline"}
	_, err := env.Engine.CreateVacancy(env.Ctx, boss, key, 500)
	require.NoError(t, err)
	_, err = env.Engine.SetPipelineMaxLength(env.Ctx, oracle, 5)
	require.NoError(t, err)
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		_, err := env.Engine.AppendStage(env.Ctx, boss, key, domain.Stage{Name: n, Amount: 10})
		require.NoError(t, err)
	}
	_, err = env.Engine.AppendStage(env.Ctx, boss, key, domain.Stage{Name: "f"})
	require.True(t, errors.Is(err, domain.ErrPipelineFull))

	stages, err := env.Engine.DeleteStage(env.Ctx, boss, key, 2)
	require.NoError(t, err)
	require.Len(t, stages, 4)
	stored, err := env.Engine.Pipeline(env.Ctx, key)
	require.NoError(t, err)
	require.Equal(t, stages, stored)
	require.Equal(t, "d", stored[2].Name)
	require.Equal(t, "e", stored[3].Name)

	_, err = env.Engine.DeleteStage(env.Ctx, boss, key, 4)
	require.True(t, errors.Is(err, domain.ErrIndexOutOfRange))
	require.Equal(t, domain.CategoryBounds, domain.CategoryOf(err))

	moved, err := env.Engine.MoveStage(env.Ctx, boss, key, 0, 3)
	require.NoError(t, err)
	require.Equal(t, "a", moved[3].Name)
	require.Equal(t, "b", moved[0].Name)

	updated, err := env.Engine.UpdateStage(env.Ctx, boss, key, 1, domain.Stage{Name: "new", Amount: 1000, Approvable: true})
	require.NoError(t, err)
	require.Equal(t, "new", updated[1].Name)
	_, err = env.Engine.UpdateStage(env.Ctx, boss, key, 20, domain.Stage{Name: "x"})
	require.True(t, errors.Is(err, domain.ErrIndexOutOfRange))
	_, err = env.Engine.UpdateStage(env.Ctx, boss, key, 0, domain.Stage{Name: "x", Amount: -1})
	require.True(t, errors.Is(err, domain.ErrInvalidArgument))

	// shrinking the cap keeps the stored pipeline but blocks growth
	_, err = env.Engine.SetPipelineMaxLength(env.Ctx, oracle, 2)
	require.NoError(t, err)
	stored, err = env.Engine.Pipeline(env.Ctx, key)
	require.NoError(t, err)
	require.Len(t, stored, 4)
	_, err = env.Engine.AppendStage(env.Ctx, boss, key, domain.Stage{Name: "g"})
	require.True(t, errors.Is(err, domain.ErrPipelineFull))
}

func TestDeleteBelowActivePosition(t *testing.T) {
	env := newTestEnv(t)
	key := env.withVacancy(t)
	env.register(t, bob)
	_, err := env.Engine.Subscribe(env.Ctx, bob, key)
	require.NoError(t, err)
	_, err = env.Engine.ApproveLevelUp(env.Ctx, boss, key, bob)
	require.NoError(t, err)

	block := true
	_, err = env.Engine.UpdateSettings(env.Ctx, oracle, engine.SettingsUpdate{BlockDeleteBelowActive: &block})
	require.NoError(t, err)
	_, err = env.Engine.DeleteStage(env.Ctx, boss, key, 0)
	require.True(t, errors.Is(err, domain.ErrStageInUse))
	_, err = env.Engine.DeleteStage(env.Ctx, boss, key, 1)
	require.True(t, errors.Is(err, domain.ErrStageInUse))
	_, err = env.Engine.DeleteStage(env.Ctx, boss, key, 2)
	require.NoError(t, err)

	// with drift accepted the position stays where it was
	block = false
	_, err = env.Engine.UpdateSettings(env.Ctx, oracle, engine.SettingsUpdate{BlockDeleteBelowActive: &block})
	require.NoError(t, err)
	_, err = env.Engine.DeleteStage(env.Ctx, boss, key, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), env.position(t, key, bob))
	passed, err := env.Engine.Passed(env.Ctx, key, bob)
	require.NoError(t, err)
	require.True(t, passed)
}

func TestPlatformSettings(t *testing.T) {
	env := newTestEnv(t)

	s, err := env.Engine.SetServiceFeePercent(env.Ctx, oracle, 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), s.ServiceFeePercent)
	_, err = env.Engine.SetServiceFeePercent(env.Ctx, oracle, 101)
	require.True(t, errors.Is(err, domain.ErrInvalidArgument))
	s, err = env.Engine.SetBeneficiary(env.Ctx, oracle, "vault")
	require.NoError(t, err)
	require.Equal(t, "vault", s.Beneficiary)
	s, err = env.Engine.SetPipelineMaxLength(env.Ctx, oracle, 10)
	require.NoError(t, err)
	require.Equal(t, 10, s.PipelineMaxLength)
	_, err = env.Engine.SetPipelineMaxLength(env.Ctx, oracle, 0)
	require.True(t, errors.Is(err, domain.ErrInvalidArgument))

	require.NoError(t, env.Engine.AddPlatformOwner(env.Ctx, oracle, alice))
	err = env.Engine.AddPlatformOwner(env.Ctx, oracle, alice)
	require.True(t, errors.Is(err, domain.ErrAlreadyExists))
	require.NoError(t, env.Engine.RemovePlatformOwner(env.Ctx, alice, oracle))
	err = env.Engine.RemovePlatformOwner(env.Ctx, alice, alice)
	require.True(t, errors.Is(err, domain.ErrInvalidArgument))
	owners, err := env.Engine.PlatformOwners(env.Ctx)
	require.NoError(t, err)
	require.Equal(t, []string{alice}, owners)
}

func TestFeeChangeAppliesToLaterSettlements(t *testing.T) {
	env := newTestEnv(t)
	key := env.withVacancy(t)
	env.register(t, bob)
	_, err := env.Engine.Subscribe(env.Ctx, bob, key)
	require.NoError(t, err)
	first, err := env.Engine.ApproveLevelUp(env.Ctx, boss, key, bob)
	require.NoError(t, err)

	_, err = env.Engine.SetServiceFeePercent(env.Ctx, oracle, 10)
	require.NoError(t, err)
	second, err := env.Engine.LevelUp(env.Ctx, oracle, key, bob)
	require.NoError(t, err)

	require.Equal(t, int64(5), first.Fee)
	require.Equal(t, int64(20), second.Fee)
	recs, err := env.Engine.Settlements(env.Ctx, repo.SettlementFilter{TenantID: acme, VacancyID: key.VacancyID})
	require.NoError(t, err)
	require.Equal(t, int64(5), recs[0].Fee)
}

func TestTenantListings(t *testing.T) {
	env := newTestEnv(t)
	env.withTenant(t)
	_, err := env.Engine.CreateTenant(env.Ctx, oracle, acme, "again", boss)
	require.True(t, errors.Is(err, domain.ErrAlreadyExists))
	_, err = env.Engine.CreateTenant(env.Ctx, oracle, "globex", "", alice)
	require.NoError(t, err)
	require.NoError(t, env.Engine.AddTenantOwner(env.Ctx, alice, "globex", boss))

	tenants, err := env.Engine.ActorTenants(env.Ctx, boss)
	require.NoError(t, err)
	require.Equal(t, []string{acme, "globex"}, tenants)
	owners, err := env.Engine.TenantOwners(env.Ctx, "globex")
	require.NoError(t, err)
	require.Equal(t, []string{alice, boss}, owners)

	require.NoError(t, env.Engine.AddTenantCollaborator(env.Ctx, boss, acme, carol))
	isCollab, err := env.Engine.IsTenantCollaborator(env.Ctx, acme, carol)
	require.NoError(t, err)
	require.True(t, isCollab)
	isOwner, err := env.Engine.IsTenantOwner(env.Ctx, acme, carol)
	require.NoError(t, err)
	require.False(t, isOwner)
	isCollab, err = env.Engine.IsTenantCollaborator(env.Ctx, "globex", carol)
	require.NoError(t, err)
	require.False(t, isCollab)

	balance, allowance, err := env.Engine.TenantFunds(env.Ctx, acme)
	require.NoError(t, err)
	require.Equal(t, int64(5000), balance)
	require.Equal(t, int64(1000), allowance)
}

func TestAPIKeys(t *testing.T) {
	env := newTestEnv(t)
	key, secret, err := env.Engine.CreateAPIKey(env.Ctx, oracle, bob, "ci")
	require.NoError(t, err)
	require.NotEmpty(t, secret)
	require.NotEqual(t, secret, key.KeyHash)

	actor, err := env.Engine.ResolveAPIKey(env.Ctx, secret)
	require.NoError(t, err)
	require.Equal(t, bob, actor)

	require.NoError(t, env.Engine.RevokeAPIKey(env.Ctx, oracle, key.ID))
	_, err = env.Engine.ResolveAPIKey(env.Ctx, secret)
	require.True(t, errors.Is(err, domain.ErrNotFound))

	_, _, err = env.Engine.CreateAPIKey(env.Ctx, bob, bob, "self-issued")
	require.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestReservedAccountsCannotAct(t *testing.T) {
	env := newTestEnv(t)
	env.withTenant(t)
	escrow := domain.TenantAccount(acme)

	_, _, err := env.Engine.CreateAPIKey(env.Ctx, oracle, escrow, "escrow")
	require.True(t, errors.Is(err, domain.ErrInvalidArgument), "%v", err)
	_, _, err = env.Engine.CreateAPIKey(env.Ctx, oracle, "platform", "spender")
	require.True(t, errors.Is(err, domain.ErrInvalidArgument), "%v", err)
	require.True(t, errors.Is(env.Engine.AddPlatformOwner(env.Ctx, oracle, escrow), domain.ErrInvalidArgument))
	require.True(t, errors.Is(env.Engine.AddTenantOwner(env.Ctx, boss, acme, escrow), domain.ErrInvalidArgument))
	_, err = env.Engine.CreateTenant(env.Ctx, oracle, "globex", "Globex", domain.TenantAccount("globex"))
	require.True(t, errors.Is(err, domain.ErrInvalidArgument), "%v", err)

	err = env.Engine.Transfer(env.Ctx, escrow, stranger, 5000)
	require.True(t, errors.Is(err, domain.ErrUnauthorized), "%v", err)
	require.EqualValues(t, 5000, env.balance(t, escrow))
	require.EqualValues(t, 0, env.balance(t, stranger))

	require.NoError(t, env.Engine.Mint(env.Ctx, oracle, "platform", 10))
	err = env.Engine.Transfer(env.Ctx, "platform", stranger, 10)
	require.True(t, errors.Is(err, domain.ErrUnauthorized), "%v", err)
	require.EqualValues(t, 10, env.balance(t, "platform"))

	_, err = env.Engine.RegisterMember(env.Ctx, escrow)
	require.True(t, errors.Is(err, domain.ErrUnauthorized), "%v", err)
	_, err = env.Engine.GetMember(env.Ctx, escrow)
	require.True(t, errors.Is(err, domain.ErrNotFound), "%v", err)

	require.NoError(t, env.Engine.Mint(env.Ctx, oracle, "treasury", 10))
	require.NoError(t, env.Engine.Transfer(env.Ctx, "treasury", stranger, 10))
	require.EqualValues(t, 10, env.balance(t, stranger))
}
