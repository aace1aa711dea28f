package cloudfront

// Config holds configuration for the CloudFront KeyValueStore provider.
type Config struct {
	// KVSARN is the ARN of the key value store. Required.
	KVSARN string `mapstructure:"kvs_arn" default:""`
	// Region overrides the region from the AWS shared config.
	Region string `mapstructure:"region" default:""`
	// Profile selects a named profile from the AWS shared config.
	Profile string `mapstructure:"profile" default:""`
}
