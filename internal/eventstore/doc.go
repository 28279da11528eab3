package eventstore

// MemoryStore and PostgresStore are the two Store implementations shipped
// with this package: MemoryStore for tests and single-process
// deployments, PostgresStore for durable multi-process deployments. The
// Postgres schema lives in cmd/discussiond/migrations and is applied with
// "discussiond migrate up".
