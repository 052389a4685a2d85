package quorum

import "testing"

func TestConfig_RequiredCounts(t *testing.T) {
	cfg := Config{F: 2}
	if n := cfg.RequiredVoters(); n != 7 {
		t.Errorf("expected n=7 for f=2, got %d", n)
	}
	if q := cfg.RequiredQuorum(); q != 5 {
		t.Errorf("expected q=5 for f=2, got %d", q)
	}
}

func TestEvaluate_InsufficientVotersInvalidatesConfiguration(t *testing.T) {
	cfg := Config{F: 1} // n=4, q=3
	votes := []Vote{
		{VoterID: "a", Value: "deny"},
		{VoterID: "b", Value: "deny"},
		{VoterID: "c", Value: "deny"},
	}
	res := Evaluate(votes, cfg)
	if res.ValidConfiguration {
		t.Fatal("expected fewer than n votes to be an invalid configuration")
	}
	if res.Reached {
		t.Error("an invalid configuration must not report a reached quorum")
	}
}

func TestEvaluate_QuorumReached(t *testing.T) {
	cfg := Config{F: 1} // n=4, q=3
	votes := []Vote{
		{VoterID: "a", Value: "allow"},
		{VoterID: "b", Value: "deny"},
		{VoterID: "c", Value: "allow"},
		{VoterID: "d", Value: "allow"},
	}
	res := Evaluate(votes, cfg)
	if !res.ValidConfiguration {
		t.Fatal("expected n votes to be a valid configuration")
	}
	if !res.Reached || res.Value != "allow" {
		t.Errorf("expected allow to reach quorum, got reached=%v value=%q", res.Reached, res.Value)
	}
}

func TestEvaluate_NoValueReachesQuorum(t *testing.T) {
	cfg := Config{F: 2} // n=7, q=5
	votes := []Vote{
		{VoterID: "a", Value: "allow"},
		{VoterID: "b", Value: "deny"},
		{VoterID: "c", Value: "allow"},
		{VoterID: "d", Value: "deny"},
		{VoterID: "e", Value: "allow"},
		{VoterID: "f", Value: "deny"},
		{VoterID: "g", Value: "escalate"},
	}
	res := Evaluate(votes, cfg)
	if !res.ValidConfiguration {
		t.Fatal("expected n votes to be a valid configuration")
	}
	if res.Reached {
		t.Errorf("expected no value to reach quorum, got %q with %d votes", res.Value, res.Counts[res.Value])
	}
}

func TestEvaluate_AbstainsDoNotCountTowardQuorum(t *testing.T) {
	cfg := Config{F: 1} // n=4, q=3
	votes := []Vote{
		{VoterID: "a", Value: "allow"},
		{VoterID: "b", Value: "allow"},
		{VoterID: "c", Abstain: true},
		{VoterID: "d", Value: "allow"},
	}
	res := Evaluate(votes, cfg)
	if !res.Reached || res.Value != "allow" {
		t.Errorf("expected allow to reach quorum ignoring the abstention, got reached=%v value=%q", res.Reached, res.Value)
	}
}

func TestEvaluate_FirstValueToReachQuorumWins(t *testing.T) {
	cfg := Config{F: 1} // n=4, q=3
	// "deny" hits q=3 on vote 3; "allow" has one vote and would need two
	// more to reach q, but the function must resolve as soon as a value
	// reaches quorum within the given vote set.
	votes := []Vote{
		{VoterID: "a", Value: "deny"},
		{VoterID: "b", Value: "deny"},
		{VoterID: "c", Value: "deny"},
		{VoterID: "d", Value: "allow"},
	}
	res := Evaluate(votes, cfg)
	if res.Value != "deny" {
		t.Errorf("expected deny to win, got %q", res.Value)
	}
}
