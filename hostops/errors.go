package hostops

import "errors"

var errWriteKernelTextUnsupported = errors.New("hostops: Real does not implement code patching; wire a codepatch.ScratchPatcher instead")
