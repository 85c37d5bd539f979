package provider

// ProviderInstance is a process-local handle binding a provider+model pair
// to a live Client. Unlike the domain package's entities, it is never
// serialized: its lifetime is the process, and ClientHandle holds an open
// connection the Orchestrator calls through.
type ProviderInstance struct {
	ProviderTag   string
	ModelName     string
	CredentialRef string
	ClientHandle  Client
}
