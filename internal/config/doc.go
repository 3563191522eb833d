// Package config loads vrender.toml.
//
// Keys present in the file are overlaid on Default; absent keys keep their
// defaults. Durations use Go syntax.
//
// # Configuration File Structure
//
//	[renderer]
//	root_id = 0
//	mount_id = "app"
//	max_node_id = 1000000
//	queue_size = 1024
//	input_debounce = "50ms"
//
//	[events]
//	propagate = ["mouseover", "mouseout"]
//
//	[transport]
//	url = "ws://localhost:3000/_vrender"
//	dial_timeout = "10s"
//	write_timeout = "10s"
//	ping_interval = "30s"
//	pong_timeout = "60s"
//	compress = true
//
//	[debug]
//	listen = "127.0.0.1:7070"
//
//	[source]
//	s3_region = "eu-west-1"
//	s3_endpoint = "http://localhost:9000"
//	s3_path_style = true
//
// # Usage
//
//	cfg, err := config.LoadFile("vrender.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := renderer.New(doc, cfg.RendererOptions()...)
package config
