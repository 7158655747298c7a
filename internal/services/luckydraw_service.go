package services

import (
	"database/sql"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/wealthbridge/backend/internal/models"
)

// LuckyDrawService runs the once-per-day weighted reward spin. The
// per-day guard is the unique constraint on (account_id, spin_date):
// the spin inserts its history row with ON CONFLICT DO NOTHING, and a
// lost insert means someone already spun today. Reward credit and
// history row commit together.
type LuckyDrawService struct {
	db     *sql.DB
	ledger *LedgerService
	rand   *rand.Rand
}

func NewLuckyDrawService(db *sql.DB, ledger *LedgerService) *LuckyDrawService {
	return &LuckyDrawService{
		db:     db,
		ledger: ledger,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ActiveRewards returns the active reward table ordered by id, the fixed
// order the weighted walk uses.
func (s *LuckyDrawService) ActiveRewards() ([]models.LuckyDrawReward, error) {
	rows, err := s.db.Query(`
		SELECT id, reward_name, reward_amount, probability_weight, is_active, created_at
		FROM lucky_draw_rewards
		WHERE is_active = TRUE
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectRewards(rows)
}

// AllRewards returns the full reward table for the admin view.
func (s *LuckyDrawService) AllRewards() ([]models.LuckyDrawReward, error) {
	rows, err := s.db.Query(`
		SELECT id, reward_name, reward_amount, probability_weight, is_active, created_at
		FROM lucky_draw_rewards
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectRewards(rows)
}

func collectRewards(rows *sql.Rows) ([]models.LuckyDrawReward, error) {
	defer rows.Close()
	rewards := []models.LuckyDrawReward{}
	for rows.Next() {
		var reward models.LuckyDrawReward
		if err := rows.Scan(&reward.ID, &reward.RewardName, &reward.RewardAmount,
			&reward.ProbabilityWeight, &reward.IsActive, &reward.CreatedAt); err != nil {
			return nil, err
		}
		rewards = append(rewards, reward)
	}
	return rewards, rows.Err()
}

// CanSpin reports whether the account has a spin left for the given day.
func (s *LuckyDrawService) CanSpin(accountID string, day time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM lucky_draw_spins
			WHERE account_id = $1 AND spin_date = $2
		)`, accountID, day.Truncate(24*time.Hour)).Scan(&exists)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Spin performs the daily draw: pick a reward by weight, insert the
// history row (the atomic once-per-day check) and credit the reward. Under
// concurrent calls exactly one insert wins; the loser gets
// ErrAlreadySpunToday with no mutation.
func (s *LuckyDrawService) Spin(accountID string) (*models.LuckyDrawSpin, error) {
	rewards, err := s.ActiveRewards()
	if err != nil {
		return nil, err
	}
	if len(rewards) == 0 {
		return nil, ErrNoRewardsConfigured
	}

	reward := pickWeighted(rewards, s.rand.Int63)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	spin := &models.LuckyDrawSpin{
		ID:           uuid.New().String(),
		AccountID:    accountID,
		RewardID:     reward.ID,
		RewardName:   reward.RewardName,
		RewardAmount: reward.RewardAmount,
		SpinDate:     time.Now().Truncate(24 * time.Hour),
		CreatedAt:    time.Now(),
	}

	result, err := tx.Exec(`
		INSERT INTO lucky_draw_spins (id, account_id, reward_id, reward_name, reward_amount, spin_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id, spin_date) DO NOTHING`,
		spin.ID, spin.AccountID, spin.RewardID, spin.RewardName, spin.RewardAmount, spin.SpinDate, spin.CreatedAt)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, ErrAlreadySpunToday
	}

	// Zero-amount rewards ("no win" slices) consume the spin but leave no
	// ledger entry.
	if reward.RewardAmount > 0 {
		_, err = s.ledger.ApplyTx(tx, accountID, Mutation{
			BalanceDelta:      reward.RewardAmount,
			WithdrawableDelta: reward.RewardAmount,
			Type:              models.TxTypeLuckyDraw,
			Reference:         spin.ID,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[LUCKYDRAW] Account %s won %s (%d)", accountID, reward.RewardName, reward.RewardAmount)
	return spin, nil
}

// pickWeighted draws uniformly in [0, totalWeight) and walks the rewards
// in order, returning the first whose cumulative weight exceeds the draw.
// The draw function is injected so tests can fix the outcome.
func pickWeighted(rewards []models.LuckyDrawReward, draw func() int64) *models.LuckyDrawReward {
	var totalWeight int64
	for _, reward := range rewards {
		if reward.ProbabilityWeight > 0 {
			totalWeight += int64(reward.ProbabilityWeight)
		}
	}
	if totalWeight == 0 {
		return &rewards[0]
	}

	point := draw() % totalWeight
	if point < 0 {
		point += totalWeight
	}

	var cumulative int64
	for i := range rewards {
		if rewards[i].ProbabilityWeight <= 0 {
			continue
		}
		cumulative += int64(rewards[i].ProbabilityWeight)
		if point < cumulative {
			return &rewards[i]
		}
	}
	return &rewards[len(rewards)-1]
}

// History returns the account's past spins, newest first.
func (s *LuckyDrawService) History(accountID string, limit int) ([]models.LuckyDrawSpin, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, reward_id, reward_name, reward_amount, spin_date, created_at
		FROM lucky_draw_spins
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	spins := []models.LuckyDrawSpin{}
	for rows.Next() {
		var spin models.LuckyDrawSpin
		if err := rows.Scan(&spin.ID, &spin.AccountID, &spin.RewardID, &spin.RewardName,
			&spin.RewardAmount, &spin.SpinDate, &spin.CreatedAt); err != nil {
			return nil, err
		}
		spins = append(spins, spin)
	}
	return spins, rows.Err()
}

// CreateReward adds a reward table entry (admin).
func (s *LuckyDrawService) CreateReward(reward *models.LuckyDrawReward) error {
	if reward.RewardAmount < 0 || reward.ProbabilityWeight <= 0 {
		return ErrInvalidAmount
	}
	reward.ID = uuid.New().String()
	reward.CreatedAt = time.Now()

	_, err := s.db.Exec(`
		INSERT INTO lucky_draw_rewards (id, reward_name, reward_amount, probability_weight, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		reward.ID, reward.RewardName, reward.RewardAmount, reward.ProbabilityWeight, reward.IsActive, reward.CreatedAt)
	return err
}

// UpdateReward updates a reward table entry (admin). History rows keep
// the name and amount they were won with.
func (s *LuckyDrawService) UpdateReward(reward *models.LuckyDrawReward) error {
	if reward.RewardAmount < 0 || reward.ProbabilityWeight <= 0 {
		return ErrInvalidAmount
	}
	result, err := s.db.Exec(`
		UPDATE lucky_draw_rewards
		SET reward_name = $1, reward_amount = $2, probability_weight = $3, is_active = $4
		WHERE id = $5`,
		reward.RewardName, reward.RewardAmount, reward.ProbabilityWeight, reward.IsActive, reward.ID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrRewardNotFound
	}
	return nil
}

// DeleteReward removes a reward table entry (admin).
func (s *LuckyDrawService) DeleteReward(rewardID string) error {
	_, err := s.db.Exec(`DELETE FROM lucky_draw_rewards WHERE id = $1`, rewardID)
	return err
}
