// Package logger provides a singleton Zap logger with context-based scoping.
//
// # Design Decisions
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context Scoping: cada request lleva su propio logger "scoped" (request_id,
//     provider) sin crear un nuevo core.
//   - Environments: "dev" usa consola con colores, "prod" usa JSON.
//   - Secrets: nunca se loguean access tokens, client secrets ni valores de state.
//
// # Usage
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Provider("github"))
//	log.Info("token exchanged", logger.Phase("exchanging"))
package logger
