package pipeline

import "github.com/banshee-data/posetrack/internal/pose"

// Session logging goes through the shared pose streams, tagged so the
// composition root can be told apart from the layer packages.

func opsf(format string, args ...interface{})   { pose.Opsf("pipeline: "+format, args...) }
func diagf(format string, args ...interface{})  { pose.Diagf("pipeline: "+format, args...) }
func tracef(format string, args ...interface{}) { pose.Tracef("pipeline: "+format, args...) }
