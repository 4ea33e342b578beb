// Package mocks holds gomock doubles of the engine's collaborator
// interfaces.
//
// Regenerate after interface changes with:
//
//	go generate ./internal/mocks
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=account_store_mock.go github.com/MrEthical07/meowauth AccountStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=app_store_mock.go github.com/MrEthical07/meowauth AppStore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=notifier_mock.go github.com/MrEthical07/meowauth Notifier
