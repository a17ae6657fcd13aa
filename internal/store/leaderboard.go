package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/mealquest/internal/model"
)

// maxEntriesPerGame bounds each live per-game table.
const maxEntriesPerGame = 100

// maxHistoryRecords bounds how many weekly snapshots are retained.
const maxHistoryRecords = 12

// LeaderboardStore persists the live per-game ranked tables, the current
// epoch metadata, and the bounded weekly history. The reward subsystem is
// the only reader and writer.
type LeaderboardStore struct {
	db *sql.DB
}

func NewLeaderboardStore(db *sql.DB) *LeaderboardStore {
	return &LeaderboardStore{db: db}
}

func scanEntry(scanner interface{ Scan(...any) error }) (*model.LeaderboardEntry, error) {
	var e model.LeaderboardEntry
	err := scanner.Scan(&e.UserID, &e.PlayerName, &e.Score, &e.FirstRecorded, &e.LastUpdated)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const entryCols = `user_id, player_name, score, first_recorded, last_updated`

// UpsertScore records score for (gameID, userID) if it beats the stored best.
// Returns the stored entry and whether this submission changed it. The
// insert-or-keep-best decision happens in one statement so two concurrent
// submissions cannot both win.
func (s *LeaderboardStore) UpsertScore(gameID string, userID int64, playerName string, score int) (*model.LeaderboardEntry, bool, error) {
	now := time.Now()
	result, err := s.db.Exec(
		`INSERT INTO leaderboard_entries (game_id, user_id, player_name, score, first_recorded, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(game_id, user_id) DO UPDATE SET
		   score = excluded.score,
		   player_name = excluded.player_name,
		   last_updated = excluded.last_updated
		 WHERE excluded.score > leaderboard_entries.score`,
		gameID, userID, playerName, score, now, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("upsert score: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	if affected > 0 {
		if err := s.truncate(gameID); err != nil {
			return nil, false, err
		}
	}

	row := s.db.QueryRow(
		`SELECT `+entryCols+` FROM leaderboard_entries WHERE game_id = ? AND user_id = ?`,
		gameID, userID,
	)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		// Truncation can drop a score that never made the top table.
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get entry: %w", err)
	}
	return entry, affected > 0, nil
}

// truncate drops entries ranked below the per-game cap.
func (s *LeaderboardStore) truncate(gameID string) error {
	_, err := s.db.Exec(
		`DELETE FROM leaderboard_entries WHERE game_id = ? AND user_id NOT IN (
		   SELECT user_id FROM leaderboard_entries WHERE game_id = ?
		   ORDER BY score DESC, last_updated ASC LIMIT ?)`,
		gameID, gameID, maxEntriesPerGame,
	)
	if err != nil {
		return fmt.Errorf("truncate leaderboard: %w", err)
	}
	return nil
}

// TopN returns the highest n entries for a game, rank attached.
func (s *LeaderboardStore) TopN(gameID string, n int) ([]model.RankedEntry, error) {
	if n <= 0 || n > maxEntriesPerGame {
		n = maxEntriesPerGame
	}
	rows, err := s.db.Query(
		`SELECT `+entryCols+` FROM leaderboard_entries WHERE game_id = ?
		 ORDER BY score DESC, last_updated ASC LIMIT ?`,
		gameID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("list top entries: %w", err)
	}
	defer rows.Close()

	var ranked []model.RankedEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		ranked = append(ranked, model.RankedEntry{Rank: len(ranked) + 1, LeaderboardEntry: *e})
	}
	return ranked, rows.Err()
}

// UserRank returns the 1-based rank and entry for a user, or (0, nil) when
// the user is unranked this epoch. Ties rank by earliest submission.
func (s *LeaderboardStore) UserRank(gameID string, userID int64) (int, *model.LeaderboardEntry, error) {
	row := s.db.QueryRow(
		`SELECT `+entryCols+` FROM leaderboard_entries WHERE game_id = ? AND user_id = ?`,
		gameID, userID,
	)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("get entry: %w", err)
	}

	var ahead int
	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM leaderboard_entries WHERE game_id = ?
		 AND (score > ? OR (score = ? AND last_updated < ?))`,
		gameID, entry.Score, entry.Score, entry.LastUpdated,
	).Scan(&ahead)
	if err != nil {
		return 0, nil, fmt.Errorf("count rank: %w", err)
	}
	return ahead + 1, entry, nil
}

// CountGame returns how many live entries a game's table holds.
func (s *LeaderboardStore) CountGame(gameID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM leaderboard_entries WHERE game_id = ?`, gameID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// AllTables returns every live table grouped by game, each sorted descending.
// Used to snapshot the epoch at rollover.
func (s *LeaderboardStore) AllTables() (map[string][]model.LeaderboardEntry, error) {
	rows, err := s.db.Query(
		`SELECT game_id, ` + entryCols + ` FROM leaderboard_entries
		 ORDER BY game_id ASC, score DESC, last_updated ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list all entries: %w", err)
	}
	defer rows.Close()

	tables := make(map[string][]model.LeaderboardEntry)
	for rows.Next() {
		var gameID string
		var e model.LeaderboardEntry
		if err := rows.Scan(&gameID, &e.UserID, &e.PlayerName, &e.Score, &e.FirstRecorded, &e.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		tables[gameID] = append(tables[gameID], e)
	}
	return tables, rows.Err()
}

// ClearAll empties every live table. Called at epoch rollover.
func (s *LeaderboardStore) ClearAll() error {
	if _, err := s.db.Exec(`DELETE FROM leaderboard_entries`); err != nil {
		return fmt.Errorf("clear leaderboard: %w", err)
	}
	return nil
}

// --- Epoch metadata ---

// Epoch returns the stored current epoch, or nil before the first rollover
// or startup initialization.
func (s *LeaderboardStore) Epoch() (*model.WeeklyEpoch, error) {
	var e model.WeeklyEpoch
	err := s.db.QueryRow(
		`SELECT week, year, start_date, end_date FROM leaderboard_epoch WHERE id = 1`,
	).Scan(&e.Week, &e.Year, &e.StartDate, &e.EndDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get epoch: %w", err)
	}
	return &e, nil
}

// SetEpoch stores the current epoch metadata.
func (s *LeaderboardStore) SetEpoch(e model.WeeklyEpoch) error {
	_, err := s.db.Exec(
		`INSERT INTO leaderboard_epoch (id, week, year, start_date, end_date)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   week = excluded.week,
		   year = excluded.year,
		   start_date = excluded.start_date,
		   end_date = excluded.end_date`,
		e.Week, e.Year, e.StartDate, e.EndDate,
	)
	if err != nil {
		return fmt.Errorf("set epoch: %w", err)
	}
	return nil
}

// --- Weekly history ---

// AddHistory stores one immutable rollover snapshot and trims retention to
// the newest records. Inserting the same (week, year) twice fails on the
// unique constraint, which backs the exactly-once payout guard.
func (s *LeaderboardStore) AddHistory(rec *model.LeaderboardHistoryRecord) error {
	snapshot, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO leaderboard_history (week, year, snapshot, reset_at) VALUES (?, ?, ?, ?)`,
		rec.Epoch.Week, rec.Epoch.Year, string(snapshot), rec.ResetAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	_, err = s.db.Exec(
		`DELETE FROM leaderboard_history WHERE id NOT IN (
		   SELECT id FROM leaderboard_history ORDER BY reset_at DESC, id DESC LIMIT ?)`,
		maxHistoryRecords,
	)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return nil
}

// HasHistory reports whether a snapshot already exists for the epoch.
func (s *LeaderboardStore) HasHistory(week, year int) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM leaderboard_history WHERE week = ? AND year = ?`,
		week, year,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check history: %w", err)
	}
	return n > 0, nil
}

// History returns the most recent snapshots, newest first.
func (s *LeaderboardStore) History(limit int) ([]model.LeaderboardHistoryRecord, error) {
	if limit <= 0 || limit > maxHistoryRecords {
		limit = maxHistoryRecords
	}
	rows, err := s.db.Query(
		`SELECT snapshot FROM leaderboard_history ORDER BY reset_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var records []model.LeaderboardHistoryRecord
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		var rec model.LeaderboardHistoryRecord
		if err := json.Unmarshal([]byte(snapshot), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
