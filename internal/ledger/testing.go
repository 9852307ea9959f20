package ledger

// SeedBalance is a test helper that seeds a wallet balance when using the
// in-memory store.
func SeedBalance(s Store, userID string, amount int64) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.wallets[userID] = &walletState{balance: amount}
	}
}
