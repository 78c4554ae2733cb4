// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/campusvote/livetally/auth"
	"github.com/campusvote/livetally/cliparse"
	"github.com/campusvote/livetally/db"
)

// TestTokenSecret signs every token minted by the helpers below
const TestTokenSecret = "test-jwt-secret"

// SetupTestDB creates a fresh sqlite database with the full schema in a
// temporary directory. It is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(db.TypeSQLite, filepath.Join(t.TempDir(), "livetally.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:          3318,
		DatabaseURL:   "file:test.db",
		DatabaseType:  db.TypeSQLite,
		MongoDatabase: "campusvote_test",
		TokenSecret:   TestTokenSecret,
		Milestones:    []int{25, 50, 75, 100},
		MilestoneMode: "reached",
		WriteRetries:  2,
		WriteTimeout:  2 * time.Second,
		SendBuffer:    16,
	}
}

// CreateTestElection inserts an election with the given status, eligible
// voter count and positions, and returns its ID
func CreateTestElection(t *testing.T, conn *sql.DB, status string, eligible int, positions ...string) string {
	t.Helper()

	electionID, _ := auth.GenerateID(12)
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)

	_, err := conn.Exec(`
		INSERT INTO election (id, title, status, total_eligible_voters, start_date, end_date)
		VALUES ($1, 'Student Council', $2, $3, $4, $5)
	`, electionID, status, eligible, start, end)
	if err != nil {
		t.Fatalf("Failed to create test election: %v", err)
	}

	for i, name := range positions {
		_, err := conn.Exec(`
			INSERT INTO election_position (election_id, name, ordinal)
			VALUES ($1, $2, $3)
		`, electionID, name, i)
		if err != nil {
			t.Fatalf("Failed to create test position: %v", err)
		}
	}

	return electionID
}

// AddTestCandidate adds a candidate and returns its ID. IDs are prefixed
// with a counter so candidates sort in the order they were added.
func AddTestCandidate(t *testing.T, conn *sql.DB, electionID, position, name string) string {
	t.Helper()

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM candidate`).Scan(&n); err != nil {
		t.Fatalf("Failed to count candidates: %v", err)
	}
	suffix, _ := auth.GenerateID(4)
	candidateID := fmtCandidateID(n, suffix)

	_, err := conn.Exec(`
		INSERT INTO candidate (id, election_id, position_name, name)
		VALUES ($1, $2, $3, $4)
	`, candidateID, electionID, position, name)
	if err != nil {
		t.Fatalf("Failed to create test candidate: %v", err)
	}

	return candidateID
}

func fmtCandidateID(n int, suffix string) string {
	const digits = "0123456789"
	b := []byte("c000-")
	b[1] = digits[(n/100)%10]
	b[2] = digits[(n/10)%10]
	b[3] = digits[n%10]
	return string(b) + suffix
}

// AddRosterVoter puts voterID on the election's roster. Elections without a
// roster accept every voter.
func AddRosterVoter(t *testing.T, conn *sql.DB, electionID, voterID string) {
	t.Helper()

	_, err := conn.Exec(`
		INSERT INTO election_voter (election_id, voter_id)
		VALUES ($1, $2)
	`, electionID, voterID)
	if err != nil {
		t.Fatalf("Failed to add roster voter: %v", err)
	}
}

// SetElectionStatus changes an election's status
func SetElectionStatus(t *testing.T, conn *sql.DB, electionID, status string) {
	t.Helper()

	if _, err := conn.Exec(`UPDATE election SET status = $1 WHERE id = $2`, status, electionID); err != nil {
		t.Fatalf("Failed to update election status: %v", err)
	}
}

// CountVotes returns the number of ledger rows for an election
func CountVotes(t *testing.T, conn *sql.DB, electionID string) int {
	t.Helper()

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM vote WHERE election_id = $1`, electionID).Scan(&n); err != nil {
		t.Fatalf("Failed to count votes: %v", err)
	}
	return n
}

// Token mints a token for userID with the given role
func Token(t *testing.T, userID, role string) string {
	t.Helper()

	token, err := auth.IssueToken(auth.Principal{ID: userID, Role: role}, TestTokenSecret, time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}

// AuthHeaders returns request headers carrying a token for userID
func AuthHeaders(t *testing.T, userID, role string) map[string]string {
	t.Helper()
	return map[string]string{auth.AuthHeader: Token(t, userID, role)}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
