package mocks

//go:generate mockgen -destination=./mock_engine.go -package=mocks github.com/rxtech-lab/argo-shortbot/internal/engine OrderExecutor,AlertCounter,LossScanner,LedgerReader
