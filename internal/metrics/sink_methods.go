package metrics

import "github.com/parastake/oracle/internal/oracletypes"

func (s *Sink) SetRecoveryModeActive(active bool) { s.IsRecoveryModeActive.Set(boolToFloat(active)) }
func (s *Sink) IncRelayException()                { s.RelayExceptionsCount.Inc() }
func (s *Sink) IncParaException()                 { s.ParaExceptionsCount.Inc() }

func (s *Sink) ObserveTxSuccess() { s.TxSuccess.Observe(1) }
func (s *Sink) ObserveTxRevert()  { s.TxRevert.Observe(1) }

func (s *Sink) SetLastFailedEra(era oracletypes.EraId) { s.LastFailedEra.Set(float64(era)) }
func (s *Sink) SetActiveEraID(era oracletypes.EraId)   { s.ActiveEraID.Set(float64(era)) }
func (s *Sink) SetLastEraReported(era oracletypes.EraId) { s.LastEraReported.Set(float64(era)) }
func (s *Sink) SetEraUpdateDelayed(active bool)          { s.EraUpdateDelayed.Set(boolToFloat(active)) }
func (s *Sink) SetPreviousEraChangeBlockNumber(n uint64) {
	s.PreviousEraChangeBlockNumber.Set(float64(n))
}

// SetOracleBalance records the oracle's parachain balance, in whatever unit the
// caller passes (the smallest denomination, per §6.2); precision beyond float64's
// ~53 bits is lost, which is acceptable for a gauge meant for alerting, not accounting.
func (s *Sink) SetOracleBalance(address string, balance float64) {
	s.OracleBalance.WithLabelValues(address).Set(balance)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
