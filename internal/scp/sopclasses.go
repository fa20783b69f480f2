package scp

// storageSOPClasses lists the Storage SOP classes a promiscuous-free SCP
// accepts by default, covering the modalities the original connector's
// integration fixtures exercise (CT, MR, secondary capture, and the
// common presentation/structured-report classes that ride along with
// them in real studies).
var storageSOPClasses = []string{
	"1.2.840.10008.5.1.4.1.1.2",      // CT Image Storage
	"1.2.840.10008.5.1.4.1.1.4",      // MR Image Storage
	"1.2.840.10008.5.1.4.1.1.7",      // Secondary Capture Image Storage
	"1.2.840.10008.5.1.4.1.1.6.1",    // Ultrasound Image Storage
	"1.2.840.10008.5.1.4.1.1.1",      // Computed Radiography Image Storage
	"1.2.840.10008.5.1.4.1.1.1.1",    // Digital X-Ray Image Storage - For Presentation
	"1.2.840.10008.5.1.4.1.1.20",     // Nuclear Medicine Image Storage
	"1.2.840.10008.5.1.4.1.1.128",    // PET Image Storage
	"1.2.840.10008.5.1.4.1.1.481.1",  // RT Image Storage
	"1.2.840.10008.5.1.4.1.1.88.11",  // Basic Text SR Storage
	"1.2.840.10008.5.1.4.1.1.11.1",   // Grayscale Softcopy Presentation State Storage
}

// compressedTransferSyntaxes lists the lossy/lossless compressed transfer
// syntaxes offered whenever scp.uncompressed_only is false.
var compressedTransferSyntaxes = []string{
	"1.2.840.10008.1.2.4.70", // JPEG Lossless, Non-Hierarchical, First-Order Prediction
	"1.2.840.10008.1.2.4.90", // JPEG 2000 Image Compression (Lossless Only)
	"1.2.840.10008.1.2.4.91", // JPEG 2000 Image Compression
	"1.2.840.10008.1.2.5",    // RLE Lossless
}
