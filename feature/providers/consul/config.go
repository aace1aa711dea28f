package consul

// Config holds configuration for the Consul provider.
type Config struct {
	// Scheme is the URI scheme used to reach the agent (http or https).
	Scheme string `mapstructure:"scheme" default:"http"`
	// Token is the ACL token sent with every request.
	Token string `mapstructure:"token" default:""`
	// Datacenter overrides the agent's default datacenter.
	Datacenter string `mapstructure:"datacenter" default:""`
}
