// Package config loads the node configuration from TOML and assembles the
// arguments the managed runtime is started with.
//
// A configuration file looks like:
//
//	[service]
//	service_class_path = "/opt/service/classes"
//	module_name = "com.example.ServiceModule"
//
//	[jvm]
//	args_prepend = ["Xmx512m"]
//	args_append = ["Duser.timezone=UTC"]
//	jvm_debug_socket = "localhost:5005"
//
//	[runtime]
//	log_config_path = "log4j2.xml"
//	port = 7000
//
//	[executor]
//	kind = "leaking"
//	attach_limit = 32
//
// User JVM arguments are written without the leading dash. The class path,
// library path and logging configuration are set internally; passing them
// as user arguments fails with a forbidden_parameter error.
package config
