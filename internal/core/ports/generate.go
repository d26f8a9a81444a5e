package ports

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mocks.go -package=mocks github.com/LuckyWindsck/mise/internal/core/ports Backend,Executor,CacheStore
