// Package factory builds pluggable components from configuration. A
// ModuleConfig names a registered type and carries its raw settings; the
// factory decodes those settings with json tags, accepting the string
// values environment overrides produce.
//
// Forecast providers, history sources, metrics sinks and audit stores are each
// selected through their own Registry, for example:
//
//	provider:
//	  type: seasonal
//	  conf:
//	    context_hours: 168
//	    source: {type: influx, conf: {url: "http://influx:8086", bucket: grid}}
package factory
