// Package config reads the YAML description of an imaging run and turns it
// into a configured convolution-function cache and gridding machine.
//
// A minimal file:
//
//	cache:
//	  dir: /scratch/cf
//	gridder:
//	  kind: wproject
//	  w_planes: 32
//	  save_pa: true
//	observe:
//	  service_name: cfgrid
//	  logging:
//	    enabled: true
//	    level: info
//
// Fields left out take the values of Default.
package config
