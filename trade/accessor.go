package trade

// ListOpenPositionIDs snapshots the IDs of every OPEN position, for
// background jobs (fee accrual, liquidation, trigger scans) to walk.
func (e *Engine) ListOpenPositionIDs() []string {
	return e.positions.listOpenIDs()
}

// MutatePosition runs fn against positionID's live value under its own
// lock, bypassing the ownership check (system jobs act on behalf of no
// particular caller, unlike a client RPC). Used by the feeaccrual scan,
// which holds its own copy of the shared ledger/market/oracle
// collaborators and reaches into the position store only through this and
// ListOpenPositionIDs. The liquidation and trigger scans do not use it:
// they read through GetPosition and act through Liquidate and Close.
func (e *Engine) MutatePosition(positionID string, fn func(p *Position) error) error {
	return e.positions.withPosition(positionID, "", fn)
}
